// Package zipcode resolves US postal codes to coordinates via the
// Zippopotam.us API, with an optional per-run LRU cache. It implements
// [domain.Geocoder] for the decode fallback path.
package zipcode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ustdata/tank-importer/internal/domain"
)

// Client implements domain.Geocoder using the Zippopotam.us place API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Zippopotam.us lookup client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.zippopotam.us/us",
		logger:  logger,
	}
}

// Lookup resolves a US postal code to coordinates. An unknown code returns
// found=false; transport and decode failures return an error.
func (c *Client) Lookup(ctx context.Context, postalCode string) (domain.Coordinates, bool, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(postalCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("zip lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("zip code not found", "zip", postalCode)
		return domain.Coordinates{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, false, fmt.Errorf("zippopotam API error: status %d: %s", resp.StatusCode, body)
	}

	var zr response
	if err := json.NewDecoder(resp.Body).Decode(&zr); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("decode response: %w", err)
	}

	if len(zr.Places) == 0 {
		c.logger.Debug("zip code resolved to no places", "zip", postalCode)
		return domain.Coordinates{}, false, nil
	}

	p := zr.Places[0]
	lat, errLat := strconv.ParseFloat(p.Latitude, 64)
	lon, errLon := strconv.ParseFloat(p.Longitude, 64)
	if errLat != nil || errLon != nil {
		return domain.Coordinates{}, false, fmt.Errorf("malformed coordinates for zip %s: lat=%q lon=%q", postalCode, p.Latitude, p.Longitude)
	}

	return domain.Coordinates{Lat: lat, Lon: lon}, true, nil
}

// Close releases idle connections. The client holds no other state.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Zippopotam.us API response types. Coordinates arrive as strings.

type response struct {
	Places []place `json:"places"`
}

type place struct {
	PlaceName string `json:"place name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	State     string `json:"state abbreviation"`
}
