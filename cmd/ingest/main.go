package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"

	"etl-records/internal/chain"
	"etl-records/internal/config"
	"etl-records/internal/dispatch"
	"etl-records/internal/mediator"
	"etl-records/internal/source"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to optional env file")
	input := flag.String("input", "", "Batch location (file path or URL); overrides config")
	flag.Parse()

	// Configure global logger (timestamped, info level by default).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("failed to load env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *input != "" {
		cfg.Input = *input
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	if cfg.Metrics.Addr != "" {
		startMetricsServer(cfg.Metrics.Addr)
	}

	ctx := context.Background()

	// A batch that cannot be loaded is the only fatal condition.
	records, err := source.NewLoader(cfg.Retry).Load(ctx, cfg.Input)
	if err != nil {
		log.Fatalf("failed to load batch: %v", err)
	}
	logrus.Infof("loaded %d records", len(records))

	router, err := mediator.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialise sinks: %v", err)
	}

	d := dispatch.New(chain.DefaultRegistry(cfg.Rules), router)
	sum, err := d.Run(ctx, records)
	if err != nil {
		logrus.Errorf("finalize failed: %v", err)
		os.Exit(1)
	}
	if router.AcceptFailures() > 0 {
		logrus.Warnf("%d record(s) could not be written", router.AcceptFailures())
	}
	logrus.Infof("done | succeeded=%d rejected=%d", sum.Succeeded, sum.Rejected)
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server stopped: %v", err)
		}
	}()
	logrus.Infof("metrics server listening on %s", addr)
}
