package zipcode

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(time.Second, discardLogger())
	c.baseURL = srv.URL
	return c
}

func TestClient_Lookup(t *testing.T) {
	t.Run("resolved zip", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/06103", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"post code": "06103",
				"places": [{"place name": "Hartford", "latitude": "41.7671", "longitude": "-72.6756", "state abbreviation": "CT"}]
			}`))
		})

		coords, found, err := c.Lookup(context.Background(), "06103")

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 41.7671, coords.Lat)
		assert.Equal(t, -72.6756, coords.Lon)
	})

	t.Run("unknown zip is a miss, not an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		var logs bytes.Buffer
		c.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

		_, found, err := c.Lookup(context.Background(), "00000")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Contains(t, logs.String(), "zip code not found")
	})

	t.Run("empty places is a miss", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"places": []}`))
		})

		_, found, err := c.Lookup(context.Background(), "06103")

		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("server error propagates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, _, err := c.Lookup(context.Background(), "06103")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("malformed coordinates propagate", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"places": [{"latitude": "north", "longitude": "west"}]}`))
		})

		_, _, err := c.Lookup(context.Background(), "06103")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed coordinates")
	})

	t.Run("context cancellation propagates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"places": []}`))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := c.Lookup(ctx, "06103")
		require.Error(t, err)
	})
}
