package kev

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const catalogURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

type kevCatalog struct {
	Vulnerabilities []kevVuln `json:"vulnerabilities"`
}

type kevVuln struct {
	CVEID     string `json:"cveID"`
	DateAdded string `json:"dateAdded"`
}

// DownloadCatalog fetches the CISA KEV JSON feed and writes it as the
// catalog CSV consumed by LoadCatalog (columns cveID,dateAdded).
func DownloadCatalog(dest string, verbose int) error {
	client := &http.Client{Timeout: 45 * time.Second}
	return downloadCatalog(client, catalogURL, dest, verbose)
}

func downloadCatalog(client *http.Client, url, dest string, verbose int) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch KEV catalog: HTTP %d", resp.StatusCode)
	}

	var catalog kevCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return fmt.Errorf("parsing KEV JSON: %w", err)
	}
	if len(catalog.Vulnerabilities) == 0 {
		return errors.New("KEV feed contained no vulnerabilities")
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cveID", "dateAdded"}); err != nil {
		return err
	}
	for _, v := range catalog.Vulnerabilities {
		if err := w.Write([]string{v.CVEID, v.DateAdded}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if verbose >= 1 {
		log.Printf("[KEV] downloaded catalog with %d entries to %s", len(catalog.Vulnerabilities), dest)
	}
	return nil
}
