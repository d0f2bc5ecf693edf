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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/input"
	"github.com/minjk-dev/go-scrape-musinsa/models"
	"github.com/minjk-dev/go-scrape-musinsa/runner"
	"github.com/minjk-dev/go-scrape-musinsa/store"
)

func main() {
	config.LoadDotenv()
	defaultCfg := config.DefaultConfig()

	idFileDefault := defaultCfg.IDFile
	if value, ok := config.EnvString("COLLECTOR_IDS"); ok {
		idFileDefault = value
	}
	databaseDefault := ""
	if value, ok := config.EnvString("DATABASE_URL"); ok {
		databaseDefault = value
	}
	tableDefault := defaultCfg.Table
	if value, ok := config.EnvString("COLLECTOR_TABLE"); ok {
		tableDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("COLLECTOR_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("COLLECTOR_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	workersDefault := defaultCfg.Workers
	if value, ok, err := config.EnvInt("COLLECTOR_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid COLLECTOR_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}

	idFile := flag.String("ids", idFileDefault, "Identifier CSV (header row, identifiers in the first column)")
	databaseURL := flag.String("db", databaseDefault, "Postgres URL; empty switches to the CSV sink")
	table := flag.String("table", tableDefault, "Target table for this product category")
	outputFile := flag.String("output", outputDefault, "CSV sink path used when no database URL is set")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Detail page base URL")
	tagBaseURL := flag.String("tag-base-url", defaultCfg.TagBaseURL, "Tag API base URL")
	workers := flag.Int("workers", workersDefault, "Concurrent workers; 1 keeps the run strictly sequential")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "Detail request timeout")
	rateLimit := flag.Float64("rate-limit", defaultCfg.RateLimit, "Hard request-rate ceiling in req/s (0 disables)")
	transportRetries := flag.Int("transport-retries", defaultCfg.TransportRetries, "Retries of the same identifier after a transport error")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.IDFile = *idFile
	cfg.DatabaseURL = *databaseURL
	cfg.Table = *table
	cfg.OutputFile = *outputFile
	cfg.BaseURL = *baseURL
	cfg.TagBaseURL = *tagBaseURL
	cfg.Workers = *workers
	cfg.Timeout = *timeout
	cfg.RateLimit = *rateLimit
	cfg.TransportRetries = *transportRetries
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ids, err := input.LoadIdentifiers(cfg.IDFile)
	if err != nil {
		slog.Error("loading identifiers", slog.Any("error", err))
		os.Exit(1)
	}

	sink, err := store.Open(cfg)
	if err != nil {
		slog.Error("opening persistence sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Error("close sink", slog.Any("error", err))
		}
	}()

	slog.Info("starting collector",
		slog.String("id_file", cfg.IDFile),
		slog.Int("identifiers", len(ids)),
		slog.Int("workers", cfg.Workers),
		slog.String("table", cfg.Table),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	metrics := runner.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := runner.New(cfg, sink, metrics).Run(ctx, ids)
	if err != nil {
		slog.Error("collection failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result)
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.Attempted) / duration.Seconds()
	}

	fmt.Println("\n" + separator)
	fmt.Println("Collection complete")
	fmt.Printf("  Run ID:           %s\n", result.RunID)
	fmt.Printf("  Identifiers:      %d (resumed at %d)\n", result.Total, result.ResumeOffset)
	fmt.Printf("  Attempted:        %d\n", result.Attempted)
	fmt.Printf("  Persisted:        %d\n", result.Persisted)
	fmt.Printf("  Duplicates:       %d\n", result.Duplicates)
	fmt.Printf("  Soft misses:      %d\n", result.SoftMisses)
	fmt.Printf("  Blocks:           %d\n", result.Blocks)
	fmt.Printf("  Transport errors: %d\n", result.TransportErrors)
	fmt.Printf("  Persist errors:   %d\n", result.PersistErrors)
	fmt.Printf("  Rotations:        %d\n", result.Rotations)
	fmt.Printf("  Duration:         %v\n", duration.Round(time.Second))
	fmt.Printf("  Items/sec:        %.2f\n", itemsPerSec)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
