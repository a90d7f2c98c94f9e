package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"duel-relay/internal/channel"
	"duel-relay/internal/config"
	"duel-relay/internal/lobby"
	"duel-relay/internal/logging"
	"duel-relay/internal/presence"
	"duel-relay/internal/relay"
	"duel-relay/internal/session"
	"duel-relay/internal/store"
	httptransport "duel-relay/internal/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	defer closeStore()

	hub := channel.NewHub(channel.Options{
		SendBuffer:   cfg.Server.ChannelSendBuffer,
		WriteTimeout: cfg.Server.ChannelWriteTimeout,
		PingInterval: cfg.Server.ChannelPingInterval,
	})
	defer hub.Close()
	r := newRouter(st, hub, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.StoreDriver).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func newRouter(st session.Store, hub *channel.Hub, cfg config.ServerConfig) *chi.Mux {
	tracker := presence.NewTracker(st, hub, cfg.StoreMaxAttempts)
	hub.SetPresence(tracker)
	return httptransport.NewRouter(httptransport.Deps{
		Store:    st,
		Lobby:    lobby.NewService(st, hub, cfg.StoreMaxAttempts),
		Relay:    relay.NewRouter(hub),
		Presence: tracker,
		Hub:      hub,
	})
}

func openStore(ctx context.Context, cfg config.ServerConfig) (session.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := store.NewPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.StoreDriverMemory:
		return store.NewMemory(), func() {}, nil
	default:
		return nil, nil, config.ErrUnknownStoreDriver
	}
}
