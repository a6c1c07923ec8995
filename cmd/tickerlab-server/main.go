package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tickerlab/internal/api"
	"tickerlab/internal/config"
	"tickerlab/internal/engine"
	"tickerlab/internal/gather"
	"tickerlab/internal/metrics"
	"tickerlab/internal/results"
	"tickerlab/internal/source"
	"tickerlab/internal/store"
	"tickerlab/internal/util"
)

func main() {
	cfgPath := "config/tickerlab.yaml"
	if p := os.Getenv("TICKERLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("tickerlab-server stopped", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("tickerlab-server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	s, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer s.Close()

	src, err := source.New(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	e := engine.NewEngine(gather.NewRetriever(s, src, m), results.NewPersister(s), cfg.Backtest, m)
	srv := api.NewServer(cfg, e, s, m)

	slog.Info("tickerlab-server starting",
		"http", cfg.HTTPAddr(),
		"grpc", cfg.GRPCAddr(),
		"db", s.Dialect(),
		"source", src.Name(),
	)
	return srv.ListenAndServe(ctx)
}
