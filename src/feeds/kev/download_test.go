package kev

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sampleFeed = `{
  "title": "CISA Catalog of Known Exploited Vulnerabilities",
  "vulnerabilities": [
    {"cveID": "CVE-2021-44228", "vendorProject": "Apache", "dateAdded": "2021-12-10"},
    {"cveID": "CVE-2023-0001", "vendorProject": "Example", "dateAdded": "2023-05-01"}
  ]
}`

func TestDownloadCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "data", "kev.csv")
	err := downloadCatalog(server.Client(), server.URL, dest, 0)
	assert.NoError(t, err)

	// The written CSV round-trips through LoadCatalog.
	catalog, err := LoadCatalog(dest, 0)
	assert.NoError(t, err)
	assert.Len(t, catalog, 2)
	assert.Equal(t, time.Date(2021, 12, 10, 0, 0, 0, 0, time.UTC), catalog["CVE-2021-44228"])
}

func TestDownloadCatalogBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := downloadCatalog(server.Client(), server.URL, filepath.Join(t.TempDir(), "kev.csv"), 0)
	assert.Error(t, err)
}

func TestDownloadCatalogEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulnerabilities": []}`))
	}))
	defer server.Close()

	err := downloadCatalog(server.Client(), server.URL, filepath.Join(t.TempDir(), "kev.csv"), 0)
	assert.Error(t, err)
}
