package epss

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/utilities/dates"
	"github.com/schollz/progressbar/v3"
)

// snapshotURL is the published location of the daily EPSS score files.
const snapshotURL = "https://epss.empiricalsecurity.com/epss_scores-%s.csv.gz"

// DownloadOptions configures a weekly snapshot download run.
type DownloadOptions struct {
	Start   time.Time
	End     time.Time
	Weekday time.Weekday
	OutDir  string
	Retries int
	Timeout time.Duration
	Sleep   time.Duration
	Force   bool
	Verbose int
}

// DownloadStats reports the outcome of a download run.
type DownloadStats struct {
	OK      int
	Skipped int
	Failed  int
}

// WeeklyDates returns every occurrence of weekday from start to end
// inclusive, starting with the first such day on or after start.
func WeeklyDates(start, end time.Time, weekday time.Weekday) []time.Time {
	offset := (int(weekday) - int(start.Weekday()) + 7) % 7
	d := start.AddDate(0, 0, offset)

	var out []time.Time
	for !d.After(end) {
		out = append(out, d)
		d = d.AddDate(0, 0, 7)
	}
	return out
}

// DownloadWeekly downloads one snapshot per week into opts.OutDir,
// skipping files that already exist unless opts.Force is set. Individual
// failures are counted, never fatal; the returned error covers only
// setup problems (e.g. the output directory cannot be created).
func DownloadWeekly(opts DownloadOptions) (DownloadStats, error) {
	var stats DownloadStats

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return stats, err
	}

	planned := WeeklyDates(opts.Start, opts.End, opts.Weekday)
	if opts.Verbose >= 1 {
		log.Printf("[SNAP] planned %d weekly snapshots (%s) from %s to %s",
			len(planned), opts.Weekday, dates.Format(opts.Start), dates.Format(opts.End))
	}

	client := &http.Client{Timeout: opts.Timeout}
	bar := progressbar.Default(int64(len(planned)))

	for _, d := range planned {
		ds := dates.Format(d)
		dest := filepath.Join(opts.OutDir, fmt.Sprintf("epss_scores-%s.csv.gz", ds))
		url := fmt.Sprintf(snapshotURL, ds)

		if _, err := os.Stat(dest); err == nil && !opts.Force {
			stats.Skipped++
			bar.Add(1)
			continue
		}

		if downloadFile(client, url, dest, opts.Retries, opts.Sleep, opts.Verbose) {
			stats.OK++
		} else {
			stats.Failed++
		}
		bar.Add(1)

		if opts.Sleep > 0 {
			time.Sleep(opts.Sleep)
		}
	}

	log.Printf("[SNAP] download done: ok=%d skip=%d fail=%d dir=%s",
		stats.OK, stats.Skipped, stats.Failed, opts.OutDir)
	return stats, nil
}

// downloadFile fetches url into dest with a retry loop, writing to a
// .part file renamed into place on success. A 404 means the snapshot
// was never published for that date and is not retried.
func downloadFile(client *http.Client, url, dest string, retries int, sleep time.Duration, verbose int) bool {
	tmp := dest + ".part"
	os.Remove(tmp)

	for attempt := 1; attempt <= retries; attempt++ {
		if verbose >= 2 {
			log.Printf("[SNAP] GET %s (attempt %d/%d)", url, attempt, retries)
		}
		err := fetchOnce(client, url, tmp)
		if err == nil {
			if err := os.Rename(tmp, dest); err != nil {
				log.Printf("[SNAP] rename %s: %v", tmp, err)
				return false
			}
			return true
		}
		if err == errNotFound {
			if verbose >= 1 {
				log.Printf("[SNAP] 404 Not Found: %s", url)
			}
			return false
		}
		if verbose >= 1 {
			log.Printf("[SNAP] download error: %v", err)
		}
		os.Remove(tmp)
		if attempt < retries && sleep > 0 {
			time.Sleep(sleep)
		}
	}
	return false
}

var errNotFound = fmt.Errorf("not found")

func fetchOnce(client *http.Client, url, tmp string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
