// Package influx owns the destination time-series store: point mapping,
// buffered writes, the flush barrier, and the optional measurement truncate
// that makes a full reload idempotent.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ustdata/tank-importer/internal/config"
	"github.com/ustdata/tank-importer/internal/domain"
)

// Measurement is the destination series name.
const Measurement = "fuel_tanks"

// batchSize bounds how many points accumulate before a synchronous
// transmission. Large enough that a full extract ships in a handful of
// requests.
const batchSize = 50_000

// Writer streams tank records to an InfluxDB 2.x bucket. It implements
// pipeline.Sink.
//
// Writes go through the blocking API with batching enabled: WriteRecord
// buffers until a batch fills, and every transmission error is returned
// synchronously from WriteRecord or Flush. A failure can never be reported
// after Flush has already succeeded.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
	logger   *slog.Logger
}

// NewWriter builds the InfluxDB client from config. Callers must Close to
// release the connection.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetPrecision(time.Second).
		SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.APIToken, opts)

	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	writeAPI.EnableBatching()

	return &Writer{
		client:   client,
		writeAPI: writeAPI,
		org:      cfg.Org,
		bucket:   cfg.Bucket,
		logger:   logger,
	}
}

// Truncate deletes every existing point of the measurement, across all time
// up to now. Used before a reload so two runs of the same extract leave the
// bucket in the same state as one.
func (w *Writer) Truncate(ctx context.Context) error {
	predicate := fmt.Sprintf("_measurement=%q", Measurement)
	if err := w.client.DeleteAPI().DeleteWithName(ctx, w.org, w.bucket, domain.StartOfTime, time.Now().UTC(), predicate); err != nil {
		return fmt.Errorf("truncate measurement %s: %w", Measurement, err)
	}
	return nil
}

// WriteRecord maps one record to a point and hands it to the batch buffer.
// A full buffer transmits before returning, so a store failure surfaces
// here on the batch boundary.
func (w *Writer) WriteRecord(ctx context.Context, rec domain.TankRecord) error {
	if err := w.writeAPI.WritePoint(ctx, Point(rec)); err != nil {
		return fmt.Errorf("write point: %w", err)
	}
	return nil
}

// Flush transmits everything still buffered. Must be called after the last
// record on normal completion; returning nil means the store accepted every
// submitted point.
func (w *Writer) Flush(ctx context.Context) error {
	if err := w.writeAPI.Flush(ctx); err != nil {
		return fmt.Errorf("flush points: %w", err)
	}
	return nil
}

// Close releases the client. Anything still buffered is dropped: the run
// either flushed successfully or already failed.
func (w *Writer) Close() {
	w.client.Close()
}

// Point maps a TankRecord 1:1 to its measurement point: the low-cardinality
// descriptive columns become tags, the numeric payload becomes fields, and
// the repaired last-used timestamp becomes the point time at second
// precision.
func Point(rec domain.TankRecord) *write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{
			"city":                rec.City,
			"closure_type":        rec.ClosureType,
			"construction_type":   rec.ConstructionType,
			"spill_protection":    rec.SpillProtection,
			"overfill_protection": rec.OverfillProtection,
			"substance_stored":    rec.SubstanceStored,
			"s2_cell_id":          rec.CellToken,
		},
		map[string]interface{}{
			"estimated_total_capacity": rec.EstimatedTotalCapacity,
			"lat":                      rec.Lat,
			"lon":                      rec.Lon,
		},
		rec.LastUsed.Truncate(time.Second),
	)
}
