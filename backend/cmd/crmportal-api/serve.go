package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmportal/crmportal/backend/internal/router"
	"github.com/crmportal/crmportal/backend/internal/setup"
	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/logger"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 40 * time.Second
	shutdownTimeout = 15 * time.Second
)

func NewServeCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the http api",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad(configFolder)
			logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, setup.Options{Memory: memory})
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep users in memory instead of postgres")
	return cmd
}

func configureServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Public.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// serve blocks until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config, opts setup.Options) error {
	deps, err := setup.SetupDependencies(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Log.Error("failed to release dependencies", "error", err)
		}
	}()

	server := configureServer(cfg, router.New(deps))
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("starting api", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
