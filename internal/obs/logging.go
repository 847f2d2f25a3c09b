// Package obs contains observability utilities: logging and tracing.
package obs

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global structured logger used by the simulator.
var Logger zerolog.Logger

func init() {
	// A usable default so packages can log before InitLogger runs.
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// InitLogger initializes the global Logger with JSON output at the given
// level. Unknown levels fall back to info.
func InitLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
