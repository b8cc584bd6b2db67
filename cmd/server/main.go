package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/logging"
	"github.com/dgnsrekt/bsdash/internal/metrics"
	"github.com/dgnsrekt/bsdash/internal/server"
	"github.com/dgnsrekt/bsdash/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("BSDASH_CONFIG"), "config file path (or set BSDASH_CONFIG)")
	verbose := flag.Bool("verbose", false, "verbose output")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// Setup logger
	logger, err := logging.New("server", *verbose, &cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.Int("spotPoints", cfg.Grid.SpotPoints),
		zap.Int("volPoints", cfg.Grid.VolPoints),
		zap.Int("workers", cfg.Grid.Workers),
		zap.Bool("wsEnabled", cfg.WS.Enabled),
		zap.Bool("metricsEnabled", cfg.Metrics.Enabled),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	settings := server.NewReloadManager(*configPath, server.SettingsFromConfig(cfg), logger)
	srv := server.NewServer(settings, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// WebSocket stream (optional)
	var stream http.Handler
	if cfg.WS.Enabled {
		hub, err := ws.NewHub(srv, ws.OptionsFromConfig(cfg.WS), m, logger)
		if err != nil {
			logger.Error("failed to create websocket hub", zap.Error(err))
			return 1
		}
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		stream = hub
		logger.Info("WebSocket enabled", zap.Strings("subprotocols", ws.Subprotocols))
	}

	// Create router
	router, err := server.NewRouter(srv, stream, cfg, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Graceful HTTP server shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}
