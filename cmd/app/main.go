package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FormRelay/internal/config"
	"FormRelay/internal/logger"
	"FormRelay/internal/server"
	"FormRelay/internal/services"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Initialize JSON logging
	appLog := logger.New(os.Stdout, cfg.InstanceName, cfg.LogLevel)
	log.SetFlags(0)
	log.SetOutput(&logger.JSONLogger{Logger: appLog})
	if cfg.ConfigPath != "" {
		appLog.Info().Str("config_file", cfg.ConfigPath).Msg("loaded config file")
	}

	srv := server.New(cfg, services.New(cfg, appLog), appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLog.Fatal().Err(err).Msg("server stopped")
	}
}
