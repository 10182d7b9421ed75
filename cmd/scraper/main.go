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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eordo/transfermarkt-data/config"
	"github.com/eordo/transfermarkt-data/models"
	"github.com/eordo/transfermarkt-data/pipeline"
	"github.com/eordo/transfermarkt-data/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	seasonDefault := defaultCfg.Season
	if value, ok, err := config.EnvInt("TRANSFERS_SEASON"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TRANSFERS_SEASON: %v\n", err)
		os.Exit(1)
	} else if ok {
		seasonDefault = value
	}
	leagueDefault := defaultCfg.League
	if value, ok := config.EnvString("TRANSFERS_LEAGUE"); ok {
		leagueDefault = value
	}
	levelDefault := defaultCfg.Level
	if value, ok := config.EnvString("TRANSFERS_LEVEL"); ok {
		levelDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("TRANSFERS_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	league := flag.String("league", leagueDefault, "League name identifier, e.g. premier-league")
	level := flag.String("level", levelDefault, "League level code, e.g. GB1")
	season := flag.Int("season", seasonDefault, "Year in which the league season begins")
	windows := flag.String("windows", "summer,winter", "Transfer windows to scrape (comma-separated)")
	parallelism := flag.Int("parallel", defaultCfg.Parallelism, "Number of concurrent requests")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	dropBadRows := flag.Bool("drop-bad-rows", false, "Drop rows that fail type coercion instead of aborting")
	outputFile := flag.String("output", "", "Output file path (default data/<season>.csv)")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Site root to scrape")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, levelVar := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(levelVar.Level())

	cfg, err := buildConfig(defaultCfg, *baseURL, *league, *level, *season, *windows,
		*parallelism, *delayMs, *randomDelayMs, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs,
		*dropBadRows, *outputFile, *outputFormat, *verbose, *metricsAddr)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("league", cfg.League),
		slog.String("level", cfg.Level),
		slog.Int("season", cfg.Season),
		slog.Int("windows", len(cfg.Windows)),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(ctx, writer, cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}
	// A window that never fetched means an incomplete dataset; abort
	// before anything is written.
	if len(result.FailedURLs) > 0 {
		slog.Error("windows failed to fetch, no output written",
			slog.Any("urls", result.FailedURLs))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
}

func buildConfig(cfg *config.Config, baseURL, league, level string, season int, windows string,
	parallelism, delayMs, randomDelayMs, maxRetries, retryBackoffMs, retryBackoffMaxMs int,
	dropBadRows bool, outputFile, outputFormat string, verbose bool, metricsAddr string) (*config.Config, error) {

	parsed, err := parseWindows(windows)
	if err != nil {
		return nil, err
	}

	cfg.BaseURL = baseURL
	cfg.League = league
	cfg.Level = level
	cfg.Season = season
	cfg.Windows = parsed
	cfg.Parallelism = parallelism
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(randomDelayMs) * time.Millisecond
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.DropBadRows = dropBadRows
	if outputFile == "" {
		ext := "csv"
		if outputFormat == "json" {
			ext = "json"
		}
		outputFile = filepath.Join("data", fmt.Sprintf("%d.%s", season, ext))
	}
	cfg.OutputFile = outputFile
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.Verbose = verbose
	cfg.MetricsAddr = metricsAddr
	return cfg, nil
}

func parseWindows(raw string) ([]models.Window, error) {
	var windows []models.Window
	for _, field := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "summer", "s":
			windows = append(windows, models.WindowSummer)
		case "winter", "w":
			windows = append(windows, models.WindowWinter)
		case "":
		default:
			return nil, fmt.Errorf("unknown transfer window %q", field)
		}
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("at least one transfer window is required")
	}
	return windows, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.ScrapeResult, duration time.Duration, outputFile string, snapshot map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	totalRecords := int64(0)
	if processed, ok := snapshot["processed_records"].(int64); ok {
		totalRecords = processed
	}

	fmt.Printf("  Transfers:     %d\n", totalRecords)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := snapshot["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
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
