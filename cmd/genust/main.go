// Command genust writes a deterministic synthetic UST extract for local runs
// and demos. The output mirrors the portal's 27-column layout, including the
// header row and the data quirks the importer has to handle: missing
// last-used dates, blanked coordinates on removed tanks, and rows with no
// location at all.
//
// Usage:
//
//	go run ./cmd/genust -out tanks.csv -rows 500
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"
)

var header = []string{
	"UST Site ID Number", "Site Name", "Site Address", "Site City", "Site Zip",
	"Tank No.", "Status of Tank", "Compartment", "Estimated Total Capacity (gallons)",
	"Substance Currently Stored", "Last Used Date", "Closure Type",
	"Construction Type - Tank", "Tank Details", "Construction Type - Piping",
	"Piping Details", "Installation Date", "Spill Protection", "Overfill Protection",
	"Tank Latitude", "Tank Longitude", "Tank Collection Method",
	"Tank Reference Point Type", "UST Site Latitude", "UST Site Longitude",
	"Site Collection Method", "Site Reference Point Type",
}

var (
	cities     = []string{"Hartford", "Bridgeport", "New Haven", "Stamford", "Waterbury", "Norwalk"}
	zips       = []string{"06103", "06604", "06510", "06901", "06702", "06850"}
	substances = []string{"Gasoline", "Diesel", "Heating Oil", "Kerosene", "Waste Oil"}
	statuses   = []string{"Permanently Closed", "Temporarily Closed", "Active - In Use"}
	closures   = []string{"Tank Removed", "Closed In Place", ""}
	pipings    = []string{"Steel", "Fiberglass", "Flexible Plastic"}
	spills     = []string{"Spill Bucket", "None", ""}
	overfills  = []string{"Ball Float", "Audible Alarm", ""}
)

func main() {
	out := flag.String("out", "tanks.csv", "output CSV path")
	rows := flag.Int("rows", 500, "number of data rows")
	seed := flag.Int64("seed", 42, "PRNG seed")
	flag.Parse()

	if err := run(*out, *rows, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(out string, rows int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < rows; i++ {
		if err := w.Write(genRow(rng, i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	log.Printf("wrote %d rows to %s", rows, out)
	return nil
}

func genRow(rng *rand.Rand, n int) []string {
	row := make([]string, len(header))
	status := statuses[rng.Intn(len(statuses))]
	city := rng.Intn(len(cities))

	row[0] = strconv.Itoa(10000 + n)
	row[1] = fmt.Sprintf("Site %d", n)
	row[2] = fmt.Sprintf("%d Main St", 1+rng.Intn(999))
	row[3] = cities[city]
	row[4] = zips[city]
	row[5] = strconv.Itoa(1 + rng.Intn(4))
	row[6] = status
	row[8] = strconv.Itoa((1 + rng.Intn(40)) * 250)
	row[9] = substances[rng.Intn(len(substances))]
	row[11] = closures[rng.Intn(len(closures))]
	row[14] = pipings[rng.Intn(len(pipings))]
	row[16] = randDate(rng, 1965, 2000)
	row[17] = spills[rng.Intn(len(spills))]
	row[18] = overfills[rng.Intn(len(overfills))]

	// Closed tanks usually have a last-used date; in-use tanks never do.
	if status != "Active - In Use" && rng.Intn(10) > 1 {
		row[10] = randDate(rng, 1990, 2022)
	}

	// Removed tanks lose their coordinates; a few lose the zip too and
	// become rejectable.
	switch {
	case rng.Intn(10) < 7:
		row[19] = fmt.Sprintf("%.6f", 41.0+rng.Float64()*1.0)
		row[20] = fmt.Sprintf("%.6f", -73.5+rng.Float64()*1.5)
	case rng.Intn(10) < 9:
		// zip-only row, resolved by lookup
	default:
		row[4] = ""
	}

	return row
}

func randDate(rng *rand.Rand, minYear, maxYear int) string {
	year := minYear + rng.Intn(maxYear-minYear+1)
	t := time.Date(year, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
	return t.Format("01/02/2006")
}
