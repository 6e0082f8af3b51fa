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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harfbaz/harfbaz-server/internal/config"
	"github.com/harfbaz/harfbaz-server/internal/httpapi"
	"github.com/harfbaz/harfbaz-server/internal/recon"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	opts := recon.Options{
		SpectatorGrace: cfg.SpectatorGrace,
		RoundGrace:     cfg.RoundGrace,
		PollInterval:   cfg.PollInterval,
		SubmitWait:     cfg.SubmitWait,
	}
	handler := httpapi.SetupRoutes(s, log, opts, cfg.PublicURL)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("listening", "addr", cfg.Addr, "driver", cfg.Driver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Infow("shut down")
	return nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		return store.OpenPostgres(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
