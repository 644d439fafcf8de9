package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"etl-records/internal/api"
	"etl-records/internal/chain"
	"etl-records/internal/config"
	"etl-records/internal/dispatch"
	"etl-records/internal/mediator"
	"etl-records/internal/record"
	"etl-records/internal/source"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to optional env file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadEnv(*envPath); err != nil {
		logrus.Fatalf("failed to load env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := chain.DefaultRegistry(cfg.Rules)
	loader := source.NewLoader(cfg.Retry)

	// Every job gets its own sinks so each batch is finalized on its own.
	run := func(ctx context.Context, records []record.Record) (dispatch.Summary, error) {
		router, err := mediator.FromConfig(ctx, cfg)
		if err != nil {
			return dispatch.Summary{Loaded: len(records)}, err
		}
		return dispatch.New(registry, router).Run(ctx, records)
	}

	srv := api.NewServer(loader.Load, run)
	logrus.Infof("API server listening on :%s", cfg.API.Port)
	if err := srv.Run(ctx, cfg.API.Port); err != nil {
		logrus.Fatalf("server stopped with error: %v", err)
	}
}
