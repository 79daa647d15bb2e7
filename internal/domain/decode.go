package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// headerSiteID is the literal first field of the repeated column-header
	// row. Exact match, not case-insensitive.
	headerSiteID = "UST Site ID Number"

	// dateLayout is the portal's MM/DD/YYYY date format.
	dateLayout = "01/02/2006"

	statusInUse = "In Use"
)

// StartOfTime is the epoch sentinel assigned to records with no recency
// signal at all: no last-used date, no in-use status, no installation date.
var StartOfTime = time.Unix(0, 0).UTC()

// ErrHeaderRow reports the repeated column-header row, which is silently
// skipped: counted neither as accepted nor as rejected.
var ErrHeaderRow = errors.New("column header row")

// RejectionError marks a row excluded from the import without aborting the
// run. Any other decode error is fatal.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "row rejected: " + e.Reason
}

// IsRejection reports whether err is a soft, counted rejection.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// DecodeRow parses one raw extract row into a TankRecord.
//
// It returns ErrHeaderRow for the repeated header, a *RejectionError when no
// location could be resolved by either the coordinate columns or the postal
// lookup, and a fatal error for malformed numeric or date values in consumed
// columns. The geocoder is only consulted on the fallback path, at most once
// per row.
func DecodeRow(ctx context.Context, row []string, geocoder Geocoder) (TankRecord, error) {
	if len(row) != ColumnCount {
		return TankRecord{}, fmt.Errorf("row has %d fields, want %d", len(row), ColumnCount)
	}
	if row[colSiteID] == headerSiteID {
		return TankRecord{}, ErrHeaderRow
	}

	// Resolved before any other field is trusted; the heuristic depends
	// on the status column.
	lastUsed, err := resolveLastUsed(row)
	if err != nil {
		return TankRecord{}, err
	}

	rawCapacity := strings.TrimSpace(row[colEstimatedTotalCapacity])
	capacity, err := strconv.Atoi(rawCapacity)
	if err != nil {
		return TankRecord{}, fmt.Errorf("parse estimated total capacity %q: %w", rawCapacity, err)
	}
	if capacity < 0 {
		return TankRecord{}, fmt.Errorf("negative estimated total capacity %d", capacity)
	}

	coords, ok, err := resolveLocation(ctx, row, geocoder)
	if err != nil {
		return TankRecord{}, err
	}
	if !ok {
		return TankRecord{}, &RejectionError{Reason: "no resolvable location"}
	}

	return TankRecord{
		City:                   strings.TrimSpace(row[colCity]),
		ClosureType:            strings.TrimSpace(row[colClosureType]),
		ConstructionType:       strings.TrimSpace(row[colConstructionTypePiping]),
		SpillProtection:        strings.TrimSpace(row[colSpillProtection]),
		OverfillProtection:     strings.TrimSpace(row[colOverfillProtection]),
		Status:                 strings.TrimSpace(row[colStatus]),
		SubstanceStored:        strings.TrimSpace(row[colSubstanceStored]),
		EstimatedTotalCapacity: capacity,
		CellToken:              CellToken(coords.Lat, coords.Lon),
		Lat:                    coords.Lat,
		Lon:                    coords.Lon,
		LastUsed:               lastUsed,
	}, nil
}

// resolveLastUsed applies the ordered last-used heuristic:
// explicit date → in-use status means now → installation date → epoch sentinel.
func resolveLastUsed(row []string) (time.Time, error) {
	if raw := strings.TrimSpace(row[colLastUsedDate]); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse last used date %q: %w", raw, err)
		}
		return t.UTC(), nil
	}
	if strings.Contains(row[colStatus], statusInUse) {
		return clock.Now().UTC(), nil
	}
	if raw := strings.TrimSpace(row[colInstallationDate]); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse installation date %q: %w", raw, err)
		}
		return t.UTC(), nil
	}
	return StartOfTime, nil
}

// resolveLocation tries the coordinate columns first, then the postal-code
// lookup. ok=false means neither path produced coordinates; the caller turns
// that into a soft rejection. Presence is judged on the source fields being
// non-empty, so a legitimate (0, 0) parse is accepted.
func resolveLocation(ctx context.Context, row []string, geocoder Geocoder) (Coordinates, bool, error) {
	rawLat := strings.TrimSpace(row[colLatitude])
	rawLon := strings.TrimSpace(row[colLongitude])
	if rawLat != "" && rawLon != "" {
		lat, err := strconv.ParseFloat(rawLat, 64)
		if err != nil {
			return Coordinates{}, false, fmt.Errorf("parse latitude %q: %w", rawLat, err)
		}
		lon, err := strconv.ParseFloat(rawLon, 64)
		if err != nil {
			return Coordinates{}, false, fmt.Errorf("parse longitude %q: %w", rawLon, err)
		}
		return Coordinates{Lat: lat, Lon: lon}, true, nil
	}

	if zip := strings.TrimSpace(row[colZip]); zip != "" && geocoder != nil {
		coords, found, err := geocoder.Lookup(ctx, zip)
		if err != nil {
			return Coordinates{}, false, fmt.Errorf("zip lookup %q: %w", zip, err)
		}
		if found {
			return coords, true, nil
		}
	}

	return Coordinates{}, false, nil
}
