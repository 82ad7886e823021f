package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/govdigest"
	"github.com/pevans/govdigest/sources"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 60 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Addr = addr
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides GOVDIGEST_ADDR")
	return cmd
}

// serve runs the API until SIGINT or SIGTERM, then drains in-flight
// requests.
func serve(parent context.Context, a *app) error {
	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	api := govdigest.NewAPIServer(
		a.service,
		sources.NewSourceAPIServer(a.adapters, a.statusReader()),
		a.registry,
		a.logger,
	)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           api.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting API server",
			zap.String("addr", a.cfg.Addr),
			zap.Int("sources", len(a.adapters)),
		)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped")
	return nil
}
