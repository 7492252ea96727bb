package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/neuralquery/internal/transport/chi"
	"github.com/kailas-cloud/neuralquery/internal/version"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

func runServe(parent context.Context, g *globalFlags) error {
	a, cleanup, err := g.bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()
	logStart(a, "serve")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The model must answer before the port is bound.
	if err := a.LoadEmbedder(ctx); err != nil {
		return err
	}

	// An unreachable backend is reported by /health; serving continues.
	if err := a.WaitForBackend(ctx); err != nil {
		a.Logger.Warn("Vector backend not ready", zap.Error(err))
	} else {
		a.Logger.Info("Connected to vector backend")
	}

	cfg := a.Config
	server := chiTransport.NewServer(a.SearchService(), a.HealthService(), chiTransport.Config{
		Title:   cfg.Service.Title,
		Version: cfg.Service.Version,
		Limits:  a.Limits(),
		APIKeys: cfg.Auth.APIKeys,
	}, a.Logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server", zap.String("addr", addr), zap.String("version", version.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.Logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.Logger.Info("Server stopped gracefully")
	return nil
}
