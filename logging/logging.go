// Package logging builds the process logger from config.Log.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shopwire/config"
)

// ParseLevel accepts zerolog level names plus a few aliases. Unknown names fall back to info.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "none", "disabled":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// New returns a logger writing to w (stdout when nil) tagged with app, and installs it as
// the zerolog global logger.
func New(cfg config.Log, app string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
