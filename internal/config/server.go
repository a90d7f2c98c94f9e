package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

var ErrUnknownStoreDriver = errors.New("unknown_store_driver")

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	StoreDriver      string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresDSN      string `env:"POSTGRES_DSN"`
	StoreMaxAttempts int    `env:"STORE_MAX_ATTEMPTS" envDefault:"8"`

	ChannelSendBuffer   int           `env:"CHANNEL_SEND_BUFFER" envDefault:"32"`
	ChannelWriteTimeout time.Duration `env:"CHANNEL_WRITE_TIMEOUT" envDefault:"10s"`
	ChannelPingInterval time.Duration `env:"CHANNEL_PING_INTERVAL" envDefault:"30s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.PostgresDSN == "" {
			return cfg, errors.New(`required environment variable "POSTGRES_DSN" is not set`)
		}
	default:
		return cfg, ErrUnknownStoreDriver
	}
	return cfg, nil
}
