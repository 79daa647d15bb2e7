// Package pipeline drives one import run: count rows, decode them all,
// abort on an empty result, sort by recency, then drain the sorted set to the
// destination store behind a flush barrier.
package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ustdata/tank-importer/internal/domain"
	"github.com/ustdata/tank-importer/internal/observability"
)

// ErrNoRowsAccepted aborts the run before any store interaction when the
// whole decode pass produced nothing. Guards against wiping a truncated
// series and replacing it with an empty one.
var ErrNoRowsAccepted = errors.New("not a single row was accepted, aborting")

// Sink receives the ordered records. The store buffers internally; Flush is
// the barrier after which nothing submitted may be lost.
type Sink interface {
	Truncate(ctx context.Context) error
	WriteRecord(ctx context.Context, rec domain.TankRecord) error
	Flush(ctx context.Context) error
}

// RunStats totals one run. Accepted+Rejected covers every data row; repeated
// header rows are excluded from both.
type RunStats struct {
	Accepted int
	Rejected int
	Total    int
}

// Importer orchestrates decode → sort → write for one extract file.
type Importer struct {
	geocoder domain.Geocoder
	sink     Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	progress Progress
	truncate bool
}

// New creates an Importer. truncate controls whether pre-existing points of
// the measurement are deleted before writing (idempotent full reload).
func New(geocoder domain.Geocoder, sink Sink, logger *slog.Logger, metrics *observability.Metrics, truncate bool) *Importer {
	return &Importer{
		geocoder: geocoder,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		progress: nopProgress{},
		truncate: truncate,
	}
}

// WithProgress attaches a progress observer for console rendering.
func (imp *Importer) WithProgress(p Progress) *Importer {
	if p != nil {
		imp.progress = p
	}
	return imp
}

// Run imports the extract at path. A context cancellation stops the run
// cleanly and returns ctx.Err(); every other error is fatal to the run. The
// returned stats are only meaningful when err is nil.
func (imp *Importer) Run(ctx context.Context, path string) (RunStats, error) {
	start := time.Now()
	// Aborted and interrupted runs count too.
	defer func() {
		imp.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	// Denominator for progress rendering only, never a correctness input.
	totalLines, err := countLines(path)
	if err != nil {
		return RunStats{}, fmt.Errorf("count input rows: %w", err)
	}
	imp.logger.Info("tank details read", "lines", totalLines)

	accepted, stats, err := imp.decodeAll(ctx, path, totalLines)
	if err != nil {
		return stats, err
	}

	if len(accepted) == 0 {
		return stats, ErrNoRowsAccepted
	}

	imp.progress.StartPhase("sorting", 1)
	domain.SortByLastUsedDesc(accepted)
	imp.progress.Advance(fmt.Sprintf("fully sorted (%d rows)", len(accepted)))
	imp.progress.EndPhase()

	if err := imp.writeAll(ctx, accepted); err != nil {
		return stats, err
	}

	imp.logger.Info("import finished",
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"duration", time.Since(start).Round(time.Second),
	)
	return stats, nil
}

// decodeAll reads every row, accumulating accepted records and tallying soft
// rejections. Fatal decode errors carry the offending row number.
func (imp *Importer) decodeAll(ctx context.Context, path string, totalLines int) ([]domain.TankRecord, RunStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, RunStats{}, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // column count is enforced by decode

	var stats RunStats
	var accepted []domain.TankRecord

	imp.progress.StartPhase("parsing", totalLines)
	defer imp.progress.EndPhase()

	for line := 1; ; line++ {
		select {
		case <-ctx.Done():
			imp.logger.Info("import interrupted", "reason", ctx.Err())
			return nil, stats, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", line, err)
		}

		rec, err := domain.DecodeRow(ctx, row, imp.geocoder)
		switch {
		case errors.Is(err, domain.ErrHeaderRow):
			imp.progress.Advance("header")
			continue
		case domain.IsRejection(err):
			stats.Rejected++
			stats.Total++
			imp.metrics.RowsRead.Inc()
			imp.metrics.RowsRejected.Inc()
			imp.logger.Debug("row rejected", "line", line, "reason", err)
			imp.progress.Advance(fmt.Sprintf("ignored row %d: %v", line, err))
			continue
		case err != nil:
			imp.logger.Error("cannot process row", "line", line, "row", row, "error", err)
			return nil, stats, fmt.Errorf("row %d: %w", line, err)
		}

		accepted = append(accepted, rec)
		stats.Accepted++
		stats.Total++
		imp.metrics.RowsRead.Inc()
		imp.metrics.RowsAccepted.Inc()
		imp.progress.Advance(fmt.Sprintf("parsed tank city=%-15s status=%-15s", rec.City, rec.Status))
	}

	return accepted, stats, nil
}

// writeAll drains the sorted records to the sink, truncating first when
// configured, and ends with the flush barrier.
func (imp *Importer) writeAll(ctx context.Context, records []domain.TankRecord) error {
	if imp.truncate {
		// A collaborator failure past this point leaves the series with
		// fewer points than before the run.
		imp.logger.Warn("truncating measurement before reload")
		if err := imp.sink.Truncate(ctx); err != nil {
			return err
		}
	}

	imp.progress.StartPhase("inserting", len(records))
	defer imp.progress.EndPhase()

	for _, rec := range records {
		select {
		case <-ctx.Done():
			imp.logger.Info("import interrupted", "reason", ctx.Err())
			return ctx.Err()
		default:
		}

		if err := imp.sink.WriteRecord(ctx, rec); err != nil {
			return fmt.Errorf("write point: %w", err)
		}
		imp.metrics.PointsWritten.Inc()
		imp.progress.Advance(fmt.Sprintf("inserted tank city=%-15s status=%-15s", rec.City, rec.Status))
	}

	if err := imp.sink.Flush(ctx); err != nil {
		return err
	}
	return nil
}

// countLines counts newline bytes without parsing, in 1 MiB chunks.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 1024*1024)
	var count int
	for {
		n, err := f.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
