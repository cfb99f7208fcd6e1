package panel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuildFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	// Written out of order on purpose; Build must process by date.
	writeFile(t, dir, "epss_scores-2025-01-13.csv",
		"#score_date:2025-01-13T00:00:00+0000\ncve,epss,percentile\nCVE-A,0.02,0.5\nCVE-B,0.9,0.99\n")
	writeFile(t, dir, "epss_scores-2025-01-06.csv",
		"#score_date:2025-01-06T00:00:00+0000\ncve,epss,percentile\nCVE-A,0.001,0.1\n")

	catalog := map[string]time.Time{"CVE-A": day(2025, 1, 6)}

	rows, err := Build(catalog, dir, 0)
	assert.NoError(t, err)

	// CVE-B is not in the catalog and is dropped without error.
	assert.Len(t, rows, 2)
	assert.Equal(t, "CVE-A", rows[0].CVE)
	assert.Equal(t, day(2025, 1, 6), rows[0].SnapshotDate)
	assert.Equal(t, 0.001, rows[0].Score)
	assert.Equal(t, day(2025, 1, 13), rows[1].SnapshotDate)
	assert.Equal(t, 0.02, rows[1].Score)
	assert.Equal(t, day(2025, 1, 6), rows[1].KevDateAdded)
}

func TestBuildSkipsUnusableSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "epss_scores-2025-01-06.csv",
		"#score_date:2025-01-06T00:00:00+0000\ncve,epss,percentile\nCVE-A,0.1,0.5\n")
	// Neither a marker nor a filename date: skipped with a warning.
	writeFile(t, dir, "epss_scores-latest.csv",
		"no marker\ncve,epss,percentile\nCVE-A,0.2,0.6\n")

	catalog := map[string]time.Time{"CVE-A": day(2025, 1, 1)}

	rows, err := Build(catalog, dir, 0)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, day(2025, 1, 6), rows[0].SnapshotDate)
}

func TestBuildEmptyDir(t *testing.T) {
	rows, err := Build(map[string]time.Time{"CVE-A": day(2025, 1, 1)}, t.TempDir(), 0)
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{
			CVE:          "CVE-2021-44228",
			KevDateAdded: day(2021, 12, 10),
			SnapshotDate: day(2025, 1, 6),
			Score:        0.9754,
			Percentile:   0.9999,
		},
	}

	path := filepath.Join(t.TempDir(), "out", "panel.csv")
	assert.NoError(t, WriteCSV(rows, path))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "cve,kev_dateAdded,snapshot_date,epss,percentile", lines[0])
	assert.Equal(t, "CVE-2021-44228,2021-12-10,2025-01-06,0.9754000000,0.9999000000", lines[1])
}
