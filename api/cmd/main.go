// Command api serves the contacts auth HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/baechuer/contacts-api/internal/bootstrap"
	"github.com/baechuer/contacts-api/internal/logger"
)

const shutdownTimeout = 15 * time.Second

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// app is what bootstrap hands back: the server plus the teardown for
// everything it was wired with (mail queue, janitor, pools).
type app struct {
	srv     server
	addr    string
	cleanup func()
}

type builder func() (*app, error)

// run serves until ctx is cancelled or the listener fails. Shutdown always
// completes before cleanup runs.
func run(ctx context.Context, build builder, lg zerolog.Logger) error {
	a, err := build()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info().Str("addr", a.addr).Msg("listening")
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", a.addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("draining connections")

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			lg.Error().Err(err).Msg("graceful shutdown failed, closing")
			_ = a.srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	lg.Info().Msg("shutdown complete")
	return nil
}

func fromBootstrap() (*app, error) {
	srv, cleanup, err := bootstrap.NewServer()
	if err != nil {
		return nil, err
	}
	return &app{srv: srv, addr: srv.Addr, cleanup: cleanup}, nil
}

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, fromBootstrap, logger.Logger)
	stop()
	if err != nil {
		logger.Logger.Error().Err(err).Msg("api exited")
		os.Exit(1)
	}
}
