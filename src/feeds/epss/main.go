// Package epss reads weekly EPSS score snapshots. Each snapshot file is
// a CSV (optionally gzip-compressed) whose first line is a metadata
// comment carrying the score date and whose second line is the column
// header, e.g.:
//
//	#model_version:v2025.03.14,score_date:2025-01-06T00:00:00+0000
//	cve,epss,percentile
//	CVE-2021-44228,0.9754,0.9999
package epss

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/utilities/dates"
)

// ErrNoSnapshotDate is returned when neither the header comment nor the
// filename yields a score date. Callers skip the file and keep going.
var ErrNoSnapshotDate = errors.New("cannot determine snapshot score date")

var (
	scoreDateRe = regexp.MustCompile(`score_date:(\d{4}-\d{2}-\d{2})T`)
	fileDateRe  = regexp.MustCompile(`epss_scores-(\d{4}-\d{2}-\d{2})\.csv`)
)

// Record is one row of a snapshot: a CVE with its EPSS score and
// percentile, both in [0,1].
type Record struct {
	CVE        string
	Score      float64
	Percentile float64
}

// ListSnapshots returns the snapshot files in dir (epss_scores-*.csv or
// .csv.gz) sorted ascending by the date embedded in the filename, with
// the bare basename as the sort key when no date is present.
func ListSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "epss_scores-") {
			continue
		}
		if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".csv.gz") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	key := func(p string) string {
		base := filepath.Base(p)
		if m := fileDateRe.FindStringSubmatch(base); m != nil {
			return m[1]
		}
		return base
	}
	sort.Slice(paths, func(i, j int) bool { return key(paths[i]) < key(paths[j]) })
	return paths, nil
}

// ReadSnapshot parses one snapshot file and returns its score date and
// records. The first line is treated as metadata, the second as the
// column header; both are discarded. Records with a non-numeric score or
// percentile are dropped silently. Returns ErrNoSnapshotDate when the
// date cannot be recovered from the metadata line or the filename.
func ReadSnapshot(path string, verbose int) (time.Time, []Record, error) {
	f, err := openMaybeGzip(path)
	if err != nil {
		return time.Time{}, nil, err
	}
	defer f.Close()

	buf := bufio.NewReader(f)

	first, err := buf.ReadString('\n')
	if err != nil && err != io.EOF {
		return time.Time{}, nil, fmt.Errorf("reading snapshot metadata line: %w", err)
	}
	snapDate, err := snapshotDate(first, filepath.Base(path))
	if err != nil {
		return time.Time{}, nil, err
	}

	header, err := buf.ReadString('\n')
	if err != nil && err != io.EOF {
		return time.Time{}, nil, fmt.Errorf("reading snapshot header line: %w", err)
	}
	// Some feeds ship snapshots with a mangled header. Proceed with the
	// positional layout cve,epss,percentile rather than failing.
	if !strings.Contains(strings.ToLower(header), "cve") {
		if verbose >= 2 {
			log.Printf("[SNAP] %s: header does not name a cve column, assuming positional layout", filepath.Base(path))
		}
	}

	reader := csv.NewReader(buf)
	reader.FieldsPerRecord = -1

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed lines are skipped; an underlying read error
			// (e.g. a truncated gzip stream) ends the file.
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			break
		}
		if len(row) < 3 {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			continue
		}
		records = append(records, Record{
			CVE:        strings.TrimSpace(row[0]),
			Score:      score,
			Percentile: pct,
		})
	}

	return snapDate, records, nil
}

// snapshotDate recovers the score date from the metadata line, falling
// back to the filename pattern.
func snapshotDate(firstLine, filename string) (time.Time, error) {
	if m := scoreDateRe.FindStringSubmatch(firstLine); m != nil {
		return dates.Parse(m[1])
	}
	if m := fileDateRe.FindStringSubmatch(filename); m != nil {
		return dates.Parse(m[1])
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrNoSnapshotDate, filename)
}

type gzipFile struct {
	io.Reader
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Close() error {
	var err error
	if g.gz != nil {
		err = g.gz.Close()
	}
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// openMaybeGzip opens a snapshot transparently, decompressing .gz files.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipFile{Reader: gz, gz: gz, f: f}, nil
}
