package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/catalog/internal/transport/chi"
	"github.com/kailas-cloud/catalog/internal/version"
	healthuc "github.com/kailas-cloud/catalog/internal/usecase/health"
)

const lockFile = ".lock"

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Serve the catalog flows as a local HTTP API",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"metrics": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				a.cfg.HTTP.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	cfg := a.cfg

	logger.Info("Starting catalog API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("region", cfg.Catalog.Region),
		zap.String("locale", cfg.Catalog.Locale),
		zap.String("cache_root", cfg.Cache.Root),
		zap.Int("pool_size", cfg.Transport.PoolSize),
	)

	// One server per cache directory. The lock covers the root given at
	// startup; PUT /settings cannot move the cache, only Client.SetCacheRoot can.
	unlock, err := lockCache(cfg.Cache.Root)
	if err != nil {
		return err
	}
	defer unlock()

	healthSvc := healthuc.New(a.client, a.client)
	server := chiTransport.NewServer(a.client, healthSvc, logger)
	r := chiTransport.NewRouter(server, logger, cfg.HTTP.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// Let background flows started through the API finish writing.
	a.client.Wait()

	logger.Info("Server stopped gracefully")
	return nil
}

// lockCache takes an exclusive lock on <root>/.lock without waiting.
func lockCache(root string) (func(), error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	path := filepath.Join(root, lockFile)
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another catalog server is using %s (lock: %s)", root, path)
	}
	return func() { _ = l.Unlock() }, nil
}
