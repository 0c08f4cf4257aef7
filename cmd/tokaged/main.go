// Command tokaged serves TikTok account age estimates over HTTP.
//
// Routes:
//
//	GET /api/profile/{username}  profile plus estimated creation date
//	GET /healthz                 liveness probe
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/tokage/pkg/estimate"
	"github.com/codeGROOVE-dev/tokage/pkg/httpcache"
	"github.com/codeGROOVE-dev/tokage/pkg/server"
	"github.com/codeGROOVE-dev/tokage/pkg/tiktok"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	noBrowser := flag.Bool("no-browser", false, "disable reading cookies from browser stores")
	noCache := flag.Bool("no-cache", false, "disable caching (enabled by default with 24-hour TTL)")
	cacheTTL := flag.Duration("cache-ttl", 24*time.Hour, "cache time-to-live")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if err := run(logger, *addr, *noBrowser, *noCache, *cacheTTL); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr string, noBrowser, noCache bool, cacheTTL time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCache := newCache(logger, noCache, cacheTTL)
	defer func() {
		if err := httpCache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}()

	clientOpts := []tiktok.Option{
		tiktok.WithLogger(logger),
		tiktok.WithHTTPCache(httpCache),
	}
	if !noBrowser {
		clientOpts = append(clientOpts, tiktok.WithBrowserCookies())
	}

	client, err := tiktok.New(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("tiktok client creation failed: %w", err)
	}

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithResponseCache(httpCache),
		server.WithEstimator(estimate.New(
			estimate.WithLogger(logger),
			estimate.WithMemoization(),
		)),
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(client, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}

// newCache returns the disk-backed cache, falling back to the null cache
// when caching is disabled or the disk cache cannot be created.
func newCache(logger *slog.Logger, noCache bool, ttl time.Duration) *httpcache.Cache {
	if noCache {
		return httpcache.NewNull()
	}
	httpCache, err := httpcache.New(ttl)
	if err != nil {
		logger.Warn("failed to initialize cache, continuing without persistence", "error", err)
		return httpcache.NewNull()
	}
	return httpCache
}
