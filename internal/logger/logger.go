package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	pkgctx "github.com/baechuer/contacts-api/internal/pkg/context"
)

// Service is stamped on every line so shared log pipelines can filter.
const Service = "contacts-auth"

var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter configures Logger from LOG_LEVEL (default info) and
// LOG_FORMAT (json | console, default console) and installs it as the
// zerolog global.
func InitWithWriter(w io.Writer) {
	Logger = New(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	zlog.Logger = Logger
}

// New builds a logger without touching package state. Unknown levels fall
// back to info.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", Service).
		Logger()
}

// WithCtx returns Logger annotated with the request id and authenticated
// subject found in ctx.
func WithCtx(ctx context.Context) *zerolog.Logger {
	lc := Logger.With()
	if id := pkgctx.GetRequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if sub := pkgctx.GetSubject(ctx); sub != "" {
		lc = lc.Str("subject_id", sub)
	}
	l := lc.Logger()
	return &l
}
