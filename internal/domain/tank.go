package domain

import "time"

// Column positions of the 27-field UST extract. Keeping the full enumeration
// (including ignored columns) makes a portal layout change a single,
// position-checked edit instead of a scattering of magic indices.
const (
	colSiteID = iota
	colSiteName
	colSiteAddress
	colCity
	colZip
	colTankNo
	colStatus
	colCompartment
	colEstimatedTotalCapacity
	colSubstanceStored
	colLastUsedDate
	colClosureType
	colConstructionTypeTank
	colTankDetails
	colConstructionTypePiping
	colPipingDetails
	colInstallationDate
	colSpillProtection
	colOverfillProtection
	colLatitude
	colLongitude
	colCollectionMethod
	colReferencePointType
	colSiteLatitude
	colSiteLongitude
	colCollectionMethodSite
	colReferencePointTypeSite

	// ColumnCount is the expected field count of every row in the extract.
	ColumnCount = colReferencePointTypeSite + 1
)

// TankRecord is one decoded tank: the 11 consumed columns plus the derived
// spatial cell token and the repaired last-used timestamp. A record is only
// ever constructed with a fully resolved location, and is immutable after
// decode.
type TankRecord struct {
	City                   string
	ClosureType            string
	ConstructionType       string // piping construction type
	SpillProtection        string
	OverfillProtection     string
	Status                 string
	SubstanceStored        string
	EstimatedTotalCapacity int // gallons
	CellToken              string
	Lat                    float64
	Lon                    float64
	LastUsed               time.Time // UTC, never zero
}
