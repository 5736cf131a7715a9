package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/defistate-amm-go/cmd/ammd/config"
	"github.com/defistate/defistate-amm-go/engine"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		bootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	// validated by config.LoadConfig
	level, _ := cfg.SlogLevel()
	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	prometheusRegistry := prometheus.DefaultRegisterer

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	amm, err := engine.New(&engine.Config{
		Logger:    rootLogger.With("component", "engine"),
		Registry:  prometheusRegistry,
		FeePoints: *cfg.FeePoints,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize Engine", "error", err)
		close()
	}
	defer amm.Close()

	api, err := server.NewAPI(server.Config{
		Engine:     amm,
		Logger:     rootLogger.With("component", "jsonrpc-server"),
		BufferSize: cfg.StreamBufferSize,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize API", "error", err)
		close()
	}
	rpcServer, err := server.NewServer(api)
	if err != nil {
		rootLogger.Error("Failed to initialize RPC server", "error", err)
		close()
	}
	defer rpcServer.Stop()

	mux := http.NewServeMux()
	mux.Handle("/", rpcServer)
	mux.Handle("/ws", rpcServer.WebsocketHandler(cfg.CORSOrigins))
	mux.Handle(cfg.MetricsPath, promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rootLogger.Info("Serving JSON-RPC", "addr", cfg.ListenAddr, "ws_path", "/ws", "metrics_path", cfg.MetricsPath, "fee_points", *cfg.FeePoints)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		rootLogger.Error("HTTP server failed", "error", err)
		close()
	case <-ctx.Done():
	}

	rootLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		rootLogger.Warn("HTTP server shutdown incomplete", "error", err)
	}
}

func loadConfig() (*config.AMMConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
