package domain

import "github.com/golang/geo/s2"

// S2Level is the cell subdivision level used for the whole run. Level 10
// cells are roughly 8 km on a side, coarse enough for town-level grouping.
const S2Level = 10

// CellToken maps a coordinate pair to its level-10 S2 cell token. The token
// is the canonical hex form, interoperable with external S2 tooling. Pure and
// total: any finite coordinate pair is indexable.
func CellToken(lat, lon float64) string {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(S2Level).ToToken()
}
