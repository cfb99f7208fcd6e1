package epss

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeeklyDates(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) // a Wednesday
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	mondays := WeeklyDates(start, end, time.Monday)
	assert.Len(t, mondays, 4)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), mondays[0])
	assert.Equal(t, time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC), mondays[3])
	for _, d := range mondays {
		assert.Equal(t, time.Monday, d.Weekday())
	}

	// Start day itself counts when it matches the weekday.
	wednesdays := WeeklyDates(start, end, time.Wednesday)
	assert.Equal(t, start, wednesdays[0])
	assert.Len(t, wednesdays, 5)

	// Empty range.
	assert.Empty(t, WeeklyDates(end, start, time.Monday))
}

func TestDownloadFileRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "epss_scores-2025-01-06.csv.gz")
	ok := downloadFile(server.Client(), server.URL, dest, 5, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, 3, attempts)

	data, err := os.ReadFile(dest)
	assert.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFileNotFoundIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "snap.csv.gz")
	ok := downloadFile(server.Client(), server.URL, dest, 5, 0, 0)
	assert.False(t, ok)
	assert.Equal(t, 1, attempts)
}

func TestDownloadFileGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "snap.csv.gz")
	ok := downloadFile(server.Client(), server.URL, dest, 2, 0, 0)
	assert.False(t, ok)
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}
