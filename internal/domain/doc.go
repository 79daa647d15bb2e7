// Package domain models the Connecticut Underground Storage Tank (UST)
// "Facility and Tank Details" extract.
//
// # Data Source
//
// The extract is a CSV download of one row per registered tank, published by
// the CT open data portal. Every data row carries 27 positional columns; the
// column-header row repeats the literal header text and is skipped during
// decode. Only 11 of the 27 columns are consumed (see the column constants in
// tank.go); the rest are ignored by design.
//
// # Last-Used Date Repair
//
// The "Last Used Date" column is frequently empty, so decode applies an
// ordered heuristic before trusting any other field:
//
//  1. A non-empty value is parsed as MM/DD/YYYY. A malformed value is a fatal
//     error, not a skip: a date the portal produced but we cannot read means
//     the extract itself is untrustworthy.
//  2. An empty value with a status containing "In Use" resolves to the
//     current time — a tank in active use was, by definition, used recently.
//  3. Otherwise a present installation date stands in for last use.
//  4. Otherwise the record falls back to the Unix epoch sentinel
//     (1970-01-01T00:00:00Z): no recency signal, but still importable.
//
// # Location Resolution
//
// Tanks that were removed often have their latitude/longitude blanked. Decode
// first tries the coordinate columns directly; when both are empty it falls
// back to resolving the site's ZIP code through a [Geocoder]. A row with no
// resolvable location by either path is soft-rejected: a tank nobody can
// place on a map has no analytic value here.
//
// # Error Split
//
// Malformed numeric and date values in consumed columns are fatal and abort
// the whole run. An unresolvable location only rejects the row. The asymmetry
// is deliberate and matches the upstream trust model: corrupt values mean the
// extract is broken, missing values are a known property of closed tanks.
//
// # Spatial Indexing
//
// Resolved coordinates are mapped to an S2 level-10 cell token (cells of
// roughly 8 km on a side) so points can be grouped spatially with standard
// geo tooling. See [CellToken].
package domain
