// Package kev loads the known-exploited-vulnerabilities catalog that the
// extraction joins EPSS snapshots against.
package kev

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/utilities/dates"
)

// ErrMissingColumns is returned when the catalog file lacks the cveID or
// dateAdded column. This is the only fatal catalog condition.
var ErrMissingColumns = errors.New("catalog must contain cveID and dateAdded columns")

// LoadCatalog reads a KEV CSV and returns a mapping cveID -> dateAdded.
// The file must have a header row containing at least cveID and dateAdded;
// extra columns are ignored. Rows with an empty identifier are skipped,
// rows with an unparseable date are skipped and counted as malformed.
func LoadCatalog(path string, verbose int) (map[string]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}

	cveIdx, dateIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.ToLower(col)) {
		case "cveid":
			cveIdx = i
		case "dateadded":
			dateIdx = i
		}
	}
	if cveIdx < 0 || dateIdx < 0 {
		return nil, fmt.Errorf("%w, got: %v", ErrMissingColumns, header)
	}

	catalog := make(map[string]time.Time)
	bad := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			bad++
			continue
		}
		if len(record) <= cveIdx || len(record) <= dateIdx {
			bad++
			continue
		}
		cve := strings.TrimSpace(record[cveIdx])
		if cve == "" {
			continue
		}
		d, err := dates.Parse(record[dateIdx])
		if err != nil {
			bad++
			continue
		}
		catalog[cve] = d
	}

	if verbose >= 1 {
		log.Printf("[KEV] loaded %d CVEs (malformed rows: %d)", len(catalog), bad)
	}
	return catalog, nil
}
