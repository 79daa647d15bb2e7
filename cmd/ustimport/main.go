// Command ustimport loads a CT Underground Storage Tank CSV extract into an
// InfluxDB bucket as the "fuel_tanks" measurement.
//
// Usage:
//
//	ustimport -data-file tanks.csv config.yaml
//
// The configuration file supplies the InfluxDB connection parameters under
// the "usts" section. Each run is a full reload: by default the measurement
// is truncated before the new points are written.
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

	"github.com/schollz/progressbar/v3"

	"github.com/ustdata/tank-importer/internal/adapter/httpadapter"
	"github.com/ustdata/tank-importer/internal/adapter/influx"
	"github.com/ustdata/tank-importer/internal/adapter/zipcode"
	"github.com/ustdata/tank-importer/internal/config"
	"github.com/ustdata/tank-importer/internal/observability"
	"github.com/ustdata/tank-importer/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataFile := flag.String("data-file", "", "path to the UST CSV extract (required)")
	flag.Parse()

	if *dataFile == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ustimport -data-file <csv> <config.yaml>")
		flag.PrintDefaults()
		return 1
	}

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional debug listener for metrics during long runs.
	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug http server error", "error", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("debug http server shutdown error", "error", err)
			}
		}()
	}

	geocoder := zipcode.NewCached(zipcode.NewClient(cfg.ZipTimeout, logger), cfg.ZipCacheSize, metrics)
	defer func() {
		if err := geocoder.Close(); err != nil {
			logger.Error("geocoder close error", "error", err)
		}
	}()

	sink := influx.NewWriter(cfg, logger)
	defer sink.Close()

	importer := pipeline.New(geocoder, sink, logger, metrics, cfg.Truncate).
		WithProgress(&consoleProgress{})

	stats, err := importer.Run(ctx, *dataFile)
	switch {
	case errors.Is(err, context.Canceled):
		// Interrupt is a clean, silent stop.
		return 0
	case err != nil:
		logger.Error("import failed", "error", err)
		return 1
	}

	fmt.Printf("Imported %d records, ignored %d records\n", stats.Accepted, stats.Rejected)
	return 0
}

// consoleProgress renders one progress bar per pipeline phase.
type consoleProgress struct {
	bar *progressbar.ProgressBar
}

func (p *consoleProgress) StartPhase(name string, total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *consoleProgress) Advance(description string) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(description)
	_ = p.bar.Add(1)
}

func (p *consoleProgress) EndPhase() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
