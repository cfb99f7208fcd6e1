// Package panel joins EPSS snapshot records against the KEV catalog and
// accumulates the surviving rows into the flat table the latency
// analysis runs on.
package panel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/feeds/epss"
	"github.com/scadastrangelove/kev-vs-epss/src/utilities/dates"
)

// ErrEmptyPanel is returned when no snapshot row survived the catalog
// join across the whole run.
var ErrEmptyPanel = errors.New("no panel rows extracted")

// Row is one surviving observation: a KEV CVE seen in one snapshot.
type Row struct {
	CVE          string
	KevDateAdded time.Time
	SnapshotDate time.Time
	Score        float64
	Percentile   float64
}

// Build streams every snapshot in snapDir in date order, keeps only the
// records whose CVE is in the catalog, and returns the accumulated rows.
// Row order is snapshot-file order, then input row order within a file.
// Snapshots without a recoverable score date are skipped with a warning.
func Build(catalog map[string]time.Time, snapDir string, verbose int) ([]Row, error) {
	files, err := epss.ListSnapshots(snapDir)
	if err != nil {
		return nil, err
	}
	if verbose >= 1 {
		log.Printf("[SNAP] found %d snapshot files in %s", len(files), snapDir)
	}

	var rows []Row
	missingDate := 0
	matchedTotal := 0

	for i, path := range files {
		name := filepath.Base(path)
		snapDate, records, err := epss.ReadSnapshot(path, verbose)
		if err != nil {
			if errors.Is(err, epss.ErrNoSnapshotDate) {
				missingDate++
			}
			log.Printf("[%d/%d] WARN: skipping %s: %v", i+1, len(files), name, err)
			continue
		}

		matched := 0
		for _, r := range records {
			dateAdded, ok := catalog[r.CVE]
			if !ok {
				continue
			}
			rows = append(rows, Row{
				CVE:          r.CVE,
				KevDateAdded: dateAdded,
				SnapshotDate: snapDate,
				Score:        r.Score,
				Percentile:   r.Percentile,
			})
			matched++
		}
		matchedTotal += matched

		if verbose >= 1 {
			log.Printf("[%d/%d] %s score_date=%s matched=%d",
				i+1, len(files), name, dates.Format(snapDate), matched)
		}
	}

	if verbose >= 1 {
		log.Printf("[SNAP] matched rows total: %d | unusable snapshot files: %d", matchedTotal, missingDate)
	}
	return rows, nil
}

// WriteCSV writes the panel table, the run's sole persisted artifact
// besides the figures. Dates are YYYY-MM-DD, floats keep ten decimals.
func WriteCSV(rows []Row, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cve", "kev_dateAdded", "snapshot_date", "epss", "percentile"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.CVE,
			dates.Format(r.KevDateAdded),
			dates.Format(r.SnapshotDate),
			fmt.Sprintf("%.10f", r.Score),
			fmt.Sprintf("%.10f", r.Percentile),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
