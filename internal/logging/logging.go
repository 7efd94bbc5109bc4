package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger and installs it as the zerolog global.
// format "console" gives human readable output; anything else is JSON.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(parsed).With().Timestamp().Str("app", "pptlinks-bot").Logger()
	log.Logger = logger
	return logger
}
