package kev

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kev.csv")
	err := os.WriteFile(path, []byte(content), 0o644)
	assert.NoError(t, err)
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `cveID,vendorProject,dateAdded,notes
CVE-2021-44228,Apache,2021-12-10,log4shell
CVE-2023-0001,Example,2023-05-01T00:00:00+0000,iso timestamp
`)

	catalog, err := LoadCatalog(path, 0)
	assert.NoError(t, err)
	assert.Len(t, catalog, 2)
	assert.Equal(t, time.Date(2021, 12, 10, 0, 0, 0, 0, time.UTC), catalog["CVE-2021-44228"])
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), catalog["CVE-2023-0001"])
}

func TestLoadCatalogSkipsMalformedRows(t *testing.T) {
	path := writeCatalog(t, `cveID,dateAdded
CVE-2021-44228,2021-12-10
,2022-01-01
CVE-2022-1234,not-a-date
CVE-2023-9999,2023-03-07
`)

	catalog, err := LoadCatalog(path, 0)
	assert.NoError(t, err)
	assert.Len(t, catalog, 2)
	assert.Contains(t, catalog, "CVE-2021-44228")
	assert.Contains(t, catalog, "CVE-2023-9999")
	assert.NotContains(t, catalog, "CVE-2022-1234")
}

func TestLoadCatalogHeaderCaseInsensitive(t *testing.T) {
	path := writeCatalog(t, `CveID,DateAdded
CVE-2021-44228,2021-12-10
`)

	catalog, err := LoadCatalog(path, 0)
	assert.NoError(t, err)
	assert.Len(t, catalog, 1)
}

func TestLoadCatalogMissingColumns(t *testing.T) {
	path := writeCatalog(t, `cveID,vendorProject
CVE-2021-44228,Apache
`)

	_, err := LoadCatalog(path, 0)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.csv"), 0)
	assert.Error(t, err)
}
