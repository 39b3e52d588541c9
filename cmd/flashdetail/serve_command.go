package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdetail/internal/handlers"
	"flashdetail/internal/httpserver"
	"flashdetail/internal/metrics"
	"flashdetail/internal/remote"
	"flashdetail/internal/resolver"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func runServe(parent context.Context, ctx *commandContext, bind string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.logger()

	// ----- Metrics -----
	metrics.Register()

	if bind == "" {
		bind = cfg.Server.Bind
	}
	logger.Info("loaded config",
		zap.String("config_path", ctx.configPath),
		zap.String("bind", bind),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Strings("decode_urls", cfg.Remote.DecodeURLs),
		zap.Strings("extra_urls", cfg.Remote.ExtraURLs),
	)

	// ----- Store + remote client -----
	res, st, err := ctx.newResolver(parent)
	if err != nil {
		logger.Error("cache store unavailable", zap.Error(err))
		return err
	}
	client, err := ctx.remoteClient()
	if err != nil {
		return err
	}

	// Endpoint edits arrive concurrently; saves are serialized.
	var saveMu sync.Mutex
	persist := func(eps *remote.Endpoints) error {
		saveMu.Lock()
		defer saveMu.Unlock()
		return ctx.saveEndpoints(eps)
	}

	// ----- Handlers -----
	resolveHandler := handlers.NewResolveHandler(res, cfg.Server.AdminToken)
	adminHandler := handlers.NewAdminHandler(st, client.Endpoints(), client, persist)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout(),
		AdminToken:     cfg.Server.AdminToken,
	}, resolveHandler, adminHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              bind,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Bool("admin_api", cfg.Server.AdminToken != ""),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-sigCtx.Done():
	}
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// compile-time check that the concrete resolver satisfies the HTTP surface.
var _ handlers.Resolver = (*resolver.Resolver)(nil)
