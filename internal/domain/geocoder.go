package domain

import "context"

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Geocoder resolves a postal code to coordinates. Lookup returns found=false
// for an unknown code; an error means the lookup service itself failed and is
// treated as fatal by the caller. Implementations must be safe for repeated
// use within one run and released with Close at run end.
type Geocoder interface {
	Lookup(ctx context.Context, postalCode string) (coords Coordinates, found bool, err error)
	Close() error
}
