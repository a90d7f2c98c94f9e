package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"duel-relay/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	outMu sync.RWMutex
	out   io.Writer = os.Stdout
	file  *cappedFile
)

// Init configures the global zerolog logger. When cfg.File is set, log lines
// are written to both stdout and the capped file.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	raw := io.Writer(os.Stdout)

	outMu.Lock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if cfg.File != "" {
		f, err := openCappedFile(cfg.File, cfg.MaxMB)
		if err == nil {
			file = f
			console = io.MultiWriter(console, f)
			raw = io.MultiWriter(raw, f)
		}
	}
	out = raw
	outMu.Unlock()

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the unformatted sink used by the request logger.
func Writer() io.Writer {
	outMu.RLock()
	defer outMu.RUnlock()
	return out
}

// Close releases the log file, if any.
func Close() error {
	outMu.Lock()
	defer outMu.Unlock()
	out = os.Stdout
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}
