// Package obslog sets up the process-wide zerolog logger, grounded on
// cs3org-reva's cmd/revad/runtime/log.go: a level-parsed, pid-tagged
// logger writing to stderr.
package obslog

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at the given level (any string
// zerolog.ParseLevel accepts; invalid or empty falls back to info),
// writing to stderr and tagging every line with the process id.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}
