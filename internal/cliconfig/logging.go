package cliconfig

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ParseLogLevel maps a log-level setting ("debug", "info", "warn", "error")
// to a zerolog level. An empty setting means info.
func ParseLogLevel(level string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log-level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return lvl, nil
}
