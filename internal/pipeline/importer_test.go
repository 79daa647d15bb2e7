package pipeline_test

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ustdata/tank-importer/internal/domain"
	"github.com/ustdata/tank-importer/internal/observability"
	"github.com/ustdata/tank-importer/internal/pipeline"
)

// --- mocks ---

type mockSink struct {
	truncates int
	written   []domain.TankRecord
	flushes   int

	truncateErr error
	writeErr    error
	flushErr    error

	// store models the destination bucket for reload tests.
	store []domain.TankRecord
}

func (m *mockSink) Truncate(_ context.Context) error {
	m.truncates++
	if m.truncateErr != nil {
		return m.truncateErr
	}
	m.store = nil
	return nil
}

func (m *mockSink) WriteRecord(_ context.Context, rec domain.TankRecord) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, rec)
	m.store = append(m.store, rec)
	return nil
}

func (m *mockSink) Flush(_ context.Context) error {
	m.flushes++
	return m.flushErr
}

type staticGeocoder struct {
	coords domain.Coordinates
	found  bool
}

func (g *staticGeocoder) Lookup(_ context.Context, _ string) (domain.Coordinates, bool, error) {
	return g.coords, g.found, nil
}

func (g *staticGeocoder) Close() error { return nil }

// --- fixture helpers ---

const headerField = "UST Site ID Number"

type rowSpec struct {
	city     string
	zip      string
	status   string
	capacity string
	lastUsed string
	lat      string
	lon      string
}

func headerRow() []string {
	row := make([]string, domain.ColumnCount)
	row[0] = headerField
	return row
}

func dataRow(s rowSpec) []string {
	row := make([]string, domain.ColumnCount)
	row[0] = "1001"
	row[3] = s.city
	row[4] = s.zip
	row[6] = s.status
	row[8] = s.capacity
	row[9] = "Gasoline"
	row[10] = s.lastUsed
	row[11] = "Tank Removed"
	row[14] = "Steel"
	row[17] = "Spill Bucket"
	row[18] = "Ball Float"
	row[19] = s.lat
	row[20] = s.lon
	return row
}

func writeFixture(t *testing.T, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tanks.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, f.Close())
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newImporter(sink pipeline.Sink, truncate bool) *pipeline.Importer {
	geo := &staticGeocoder{found: false}
	return pipeline.New(geo, sink, discardLogger(), observability.NewMetricsForTesting(), truncate)
}

// --- tests ---

func TestImporter_Run_HappyPath(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "4000", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
		dataRow(rowSpec{city: "Bridgeport", capacity: "550", lastUsed: "01/02/1999", lat: "41.18", lon: "-73.19"}),
	)
	sink := &mockSink{}

	stats, err := newImporter(sink, true).Run(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStats{Accepted: 2, Rejected: 0, Total: 2}, stats)
	assert.Equal(t, 1, sink.truncates)
	assert.Equal(t, 1, sink.flushes)
	require.Len(t, sink.written, 2)
	// Most recently used first.
	assert.Equal(t, "Hartford", sink.written[0].City)
	assert.Equal(t, "Bridgeport", sink.written[1].City)
}

func TestImporter_Run_HeaderExcludedFromCounts(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "10", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
	)
	sink := &mockSink{}

	stats, err := newImporter(sink, false).Run(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, stats.Total, stats.Accepted+stats.Rejected)
}

func TestImporter_Run_RejectionCounted(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "10", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
		// No coordinates, no zip: soft rejection.
		dataRow(rowSpec{city: "Nowhere", capacity: "10", lastUsed: "05/10/2021"}),
	)
	sink := &mockSink{}

	stats, err := newImporter(sink, false).Run(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStats{Accepted: 1, Rejected: 1, Total: 2}, stats)
	assert.Len(t, sink.written, 1)
}

func TestImporter_Run_ZipFallback(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", zip: "06103", capacity: "10", lastUsed: "05/10/2021"}),
	)
	sink := &mockSink{}
	geo := &staticGeocoder{coords: domain.Coordinates{Lat: 42.0, Lon: -72.0}, found: true}
	imp := pipeline.New(geo, sink, discardLogger(), observability.NewMetricsForTesting(), false)

	stats, err := imp.Run(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Accepted)
	require.Len(t, sink.written, 1)
	assert.Equal(t, 42.0, sink.written[0].Lat)
	assert.Equal(t, domain.CellToken(42.0, -72.0), sink.written[0].CellToken)
}

func TestImporter_Run_ZeroAcceptedAbortsBeforeStore(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		path := writeFixture(t, headerRow())
		sink := &mockSink{}

		_, err := newImporter(sink, true).Run(context.Background(), path)

		require.ErrorIs(t, err, pipeline.ErrNoRowsAccepted)
		assert.Zero(t, sink.truncates, "store must not be touched")
		assert.Empty(t, sink.written)
		assert.Zero(t, sink.flushes)
	})

	t.Run("only rejectable rows", func(t *testing.T) {
		path := writeFixture(t,
			headerRow(),
			dataRow(rowSpec{city: "Nowhere", capacity: "10", lastUsed: "05/10/2021"}),
		)
		sink := &mockSink{}

		stats, err := newImporter(sink, true).Run(context.Background(), path)

		require.ErrorIs(t, err, pipeline.ErrNoRowsAccepted)
		assert.Equal(t, 1, stats.Rejected)
		assert.Zero(t, sink.truncates)
	})
}

func TestImporter_Run_StableDescendingOrder(t *testing.T) {
	// Two equal-timestamp rows plus one older: equal rows keep decode order.
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "first", capacity: "1", lastUsed: "05/10/2021", lat: "41.1", lon: "-72.1"}),
		dataRow(rowSpec{city: "older", capacity: "1", lastUsed: "05/09/2021", lat: "41.2", lon: "-72.2"}),
		dataRow(rowSpec{city: "second", capacity: "1", lastUsed: "05/10/2021", lat: "41.3", lon: "-72.3"}),
	)
	sink := &mockSink{}

	_, err := newImporter(sink, false).Run(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, sink.written, 3)
	assert.Equal(t, "first", sink.written[0].City)
	assert.Equal(t, "second", sink.written[1].City)
	assert.Equal(t, "older", sink.written[2].City)
}

func TestImporter_Run_FatalParseErrorAborts(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "lots", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
	)
	sink := &mockSink{}

	_, err := newImporter(sink, true).Run(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Zero(t, sink.truncates)
	assert.Empty(t, sink.written)
}

func TestImporter_Run_TruncateDisabled(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "10", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
	)
	sink := &mockSink{}

	_, err := newImporter(sink, false).Run(context.Background(), path)

	require.NoError(t, err)
	assert.Zero(t, sink.truncates)
	assert.Len(t, sink.written, 1)
}

func TestImporter_Run_IdempotentReload(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "4000", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
		dataRow(rowSpec{city: "Bridgeport", capacity: "550", lastUsed: "01/02/1999", lat: "41.18", lon: "-73.19"}),
	)
	sink := &mockSink{}
	imp := newImporter(sink, true)

	_, err := imp.Run(context.Background(), path)
	require.NoError(t, err)
	firstState := append([]domain.TankRecord(nil), sink.store...)

	_, err = imp.Run(context.Background(), path)
	require.NoError(t, err)

	if diff := cmp.Diff(firstState, sink.store); diff != "" {
		t.Errorf("store state differs after reload (-first +second):\n%s", diff)
	}
}

func TestImporter_Run_SinkFailuresAreFatal(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "10", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
	)

	t.Run("truncate failure", func(t *testing.T) {
		sink := &mockSink{truncateErr: errors.New("unauthorized")}
		_, err := newImporter(sink, true).Run(context.Background(), path)
		require.Error(t, err)
		assert.Empty(t, sink.written)
	})

	t.Run("write failure", func(t *testing.T) {
		sink := &mockSink{writeErr: errors.New("connection reset")}
		_, err := newImporter(sink, false).Run(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write point")
	})

	t.Run("flush failure", func(t *testing.T) {
		sink := &mockSink{flushErr: errors.New("timeout")}
		_, err := newImporter(sink, false).Run(context.Background(), path)
		require.Error(t, err)
	})
}

func TestImporter_Run_Interrupt(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		dataRow(rowSpec{city: "Hartford", capacity: "10", lastUsed: "05/10/2021", lat: "41.76", lon: "-72.68"}),
	)
	sink := &mockSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newImporter(sink, true).Run(ctx, path)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sink.truncates)
	assert.Empty(t, sink.written)
}

func TestImporter_Run_MissingFile(t *testing.T) {
	sink := &mockSink{}
	_, err := newImporter(sink, true).Run(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestImporter_Run_DurationObservedOnFailure(t *testing.T) {
	path := writeFixture(t, headerRow()) // zero accepted: fatal abort
	sink := &mockSink{}
	metrics := observability.NewMetricsForTesting()
	geo := &staticGeocoder{}
	imp := pipeline.New(geo, sink, discardLogger(), metrics, true)

	_, err := imp.Run(context.Background(), path)

	require.ErrorIs(t, err, pipeline.ErrNoRowsAccepted)
	assert.EqualValues(t, 1, histogramSampleCount(t, metrics.RunDuration),
		"aborted runs should record a duration sample")
}

func TestImporter_Run_EpochSentinelSortsLast(t *testing.T) {
	path := writeFixture(t,
		headerRow(),
		// No last-used, not in use, no installation date: epoch sentinel.
		dataRow(rowSpec{city: "sentinel", capacity: "1", lat: "41.1", lon: "-72.1"}),
		dataRow(rowSpec{city: "dated", capacity: "1", lastUsed: "05/10/2021", lat: "41.2", lon: "-72.2"}),
	)
	sink := &mockSink{}

	_, err := newImporter(sink, false).Run(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, sink.written, 2)
	assert.Equal(t, "dated", sink.written[0].City)
	assert.Equal(t, "sentinel", sink.written[1].City)
	assert.Equal(t, domain.StartOfTime, sink.written[1].LastUsed)
	assert.False(t, sink.written[1].LastUsed.IsZero(), "last used is always populated")
}
