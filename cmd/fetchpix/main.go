package main

import (
	"context"
	"encoding/csv"
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

	"github.com/fetchpix/fetchpix/config"
	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/service"
	"github.com/fetchpix/fetchpix/session"
)

func main() {
	defaultCfg := config.DefaultConfig()
	concurrencyDefault := defaultCfg.Concurrency
	if value, ok, err := config.EnvInt("FETCHPIX_CONCURRENCY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid FETCHPIX_CONCURRENCY: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrencyDefault = value
	}
	storageDefault := defaultCfg.StorageRoot
	if value, ok := config.EnvString("FETCHPIX_STORAGE_ROOT"); ok {
		storageDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("FETCHPIX_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	input := flag.String("input", "", "CSV file with product rows (first row is the header)")
	field := flag.String("field", "id", "Header name of the identifier column")
	sampleURL := flag.String("sample-url", "", "Sample product page URL containing one 12-digit identifier")
	storageRoot := flag.String("storage-root", storageDefault, "Destination root folder")
	concurrency := flag.Int("concurrency", concurrencyDefault, "Number of concurrent browser sessions")
	engine := flag.String("engine", defaultCfg.Engine, "Page engine: chrome or static")
	fingerprint := flag.String("fingerprint", defaultCfg.Fingerprint, "Substring an image src must contain (CDN host)")
	perIDDirs := flag.Bool("per-id-dirs", defaultCfg.PerIdentifierDirs, "Save into per-identifier subfolders")
	navTimeoutMs := flag.Int("nav-timeout", int(defaultCfg.NavigationTimeout/time.Millisecond), "Navigation timeout (milliseconds)")
	hostIntervalMs := flag.Int("host-interval", 0, "Minimum spacing between byte fetches per host (milliseconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *input == "" || *sampleURL == "" {
		fmt.Fprintln(os.Stderr, "both -input and -sample-url are required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := defaultCfg
	cfg.Concurrency = *concurrency
	cfg.Engine = *engine
	cfg.Fingerprint = *fingerprint
	cfg.PerIdentifierDirs = *perIDDirs
	cfg.NavigationTimeout = time.Duration(*navTimeoutMs) * time.Millisecond
	cfg.HostInterval = time.Duration(*hostIntervalMs) * time.Millisecond
	cfg.StorageRoot = *storageRoot
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	rows, err := readRows(*input)
	if err != nil {
		slog.Error("reading input", slog.Any("error", err))
		os.Exit(1)
	}

	factory, err := session.NewFactory(cfg)
	if err != nil {
		slog.Error("initialising session factory", slog.Any("error", err))
		os.Exit(1)
	}

	svc, err := service.New(cfg, factory)
	if err != nil {
		slog.Error("initialising service", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping new work")
		svc.RequestCancel()
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(svc.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	root := cfg.StorageRoot
	if root == "" {
		root = svc.DefaultStorageFolder()
	}

	slog.Info("starting run",
		slog.Int("rows", len(rows)),
		slog.String("sample_url", *sampleURL),
		slog.Int("concurrency", cfg.Concurrency),
		slog.String("engine", cfg.Engine),
		slog.String("storage_root", root),
	)

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range svc.Events() {
			slog.Info("progress",
				slog.String("stage", string(ev.Stage)),
				slog.Int("current", ev.Current),
				slog.Int("total", ev.Total),
				slog.Int("percent", ev.Percent),
			)
		}
	}()

	startTime := time.Now()
	status := svc.Run(context.Background(), rows, *sampleURL, *field, root)
	svc.Close()
	<-progressDone

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(status, time.Since(startTime), root)
	if !status.Success {
		os.Exit(1)
	}
}

// readRows loads the CSV input as header-keyed rows. Dialect handling beyond
// encoding/csv defaults is the caller's problem.
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("input %q has no data rows", path)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func printSummary(status models.RunStatus, duration time.Duration, root string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if status.Success {
		fmt.Println("Run complete")
	} else {
		fmt.Println("Run failed")
	}
	fmt.Printf("  Status:       %s\n", status.Message)
	fmt.Printf("  Duration:     %v\n", duration)
	fmt.Printf("  Storage root: %s\n", root)
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
