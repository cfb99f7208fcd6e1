package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	pipeline "github.com/scadastrangelove/kev-vs-epss/src"
	"github.com/scadastrangelove/kev-vs-epss/src/feeds/epss"
	"github.com/scadastrangelove/kev-vs-epss/src/feeds/kev"
)

func main() {
	var help = flag.Bool("help", false, "Show help")
	var daemon = flag.Bool("daemon", false, "Run as daemon with cron scheduler (weekly download + extraction)")
	var debug = flag.Bool("debug", false, "Enable debug schedule for cronjobs (every minute)")
	var mirror = flag.Bool("mirror", false, "Mirror the extracted panel into Postgres (PG_DB_* env)")
	var action = ""
	var verbose = flag.Int("v", 0, "Verbosity (0-2)")

	var kevCSV = flag.String("kev-csv", "data/known_exploited_vulnerabilities.csv", "KEV table CSV containing cveID and dateAdded")
	var snapDir = flag.String("snap-dir", "data/epss_weekly", "Folder with epss_scores-YYYY-MM-DD.csv(.gz) weekly snapshots")
	var outCSV = flag.String("out-csv", "kev_weekly_epss.csv", "Output extracted panel CSV")
	var figDir = flag.String("fig-dir", "figures", "Output directory for figures")
	var thresholds = flag.String("thresholds", "0.001,0.01,0.1", "Comma-separated EPSS thresholds")
	var growth = flag.String("growth", "10,100", "Comma-separated EPSS growth factors from baseline")

	var start = flag.String("start", "", "Download start date YYYY-MM-DD (default: Jan 1 of the current year)")
	var end = flag.String("end", "", "Download end date YYYY-MM-DD (default: today)")
	var weekday = flag.String("weekday", "mon", "Which weekday to download (mon..sun)")
	var retries = flag.Int("retries", 5, "Retries per snapshot file")
	var timeout = flag.Int("timeout", 45, "HTTP timeout in seconds")
	var sleep = flag.Float64("sleep", 1.5, "Sleep in seconds between retries/files")
	var force = flag.Bool("force", false, "Re-download snapshots even if the file exists")

	flag.StringVar(&action, "action", action, "Action to perform: download, kev or extract")
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	downloadOpts, err := buildDownloadOptions(*start, *end, *weekday, *snapDir, *retries, *timeout, *sleep, *force, *verbose)
	if err != nil {
		log.Fatalf("Invalid download options: %v", err)
	}

	extractOpts, err := buildExtractOptions(*kevCSV, *snapDir, *outCSV, *figDir, *thresholds, *growth, *verbose)
	if err != nil {
		log.Fatalf("Invalid extraction options: %v", err)
	}

	switch {
	case action != "":
		// CLI mode - one action per invocation
		switch action {
		case "download":
			if _, err := epss.DownloadWeekly(downloadOpts); err != nil {
				log.Fatalf("Failed to download snapshots: %v", err)
			}
		case "kev":
			if err := kev.DownloadCatalog(*kevCSV, *verbose); err != nil {
				log.Fatalf("Failed to download KEV catalog: %v", err)
			}
		case "extract":
			if *mirror {
				service, err := CreatePipelineService()
				if err != nil {
					log.Fatalf("Failed to create pipeline service: %v", err)
				}
				defer service.Close()
				extractOpts.DB = service.DB
			}
			if err := pipeline.Run(extractOpts); err != nil {
				log.Fatalf("Extraction failed: %v", err)
			}
		default:
			flag.Usage()
			os.Exit(0)
		}
	case *daemon:
		// Daemon mode - weekly download followed by a fresh extraction
		log.Println("Starting kev-vs-epss in daemon mode with cron scheduler...")

		if *mirror {
			service, err := CreatePipelineService()
			if err != nil {
				log.Fatalf("Failed to create pipeline service: %v", err)
			}
			defer service.Close()
			extractOpts.DB = service.DB
		}

		c := cron.New(cron.WithSeconds())

		// The feed publishes daily; one refresh after each weekly
		// snapshot lands is enough.
		cronExpr := fmt.Sprintf("0 0 6 * * %d", int(downloadOpts.Weekday))
		if *debug {
			log.Printf("Debug mode: running the pipeline every minute for testing")
			cronExpr = "0 * * * * *"
		}

		_, err := c.AddFunc(cronExpr, func() {
			timestamp := time.Now().Format("2006-01-02 15:04:05")
			log.Printf("[%s] Starting scheduled snapshot refresh...", timestamp)

			started := time.Now()
			opts := downloadOpts
			opts.End = time.Now().UTC().Truncate(24 * time.Hour)
			if _, err := epss.DownloadWeekly(opts); err != nil {
				log.Printf("[%s] ERROR: snapshot download failed after %v: %v", timestamp, time.Since(started), err)
				return
			}
			if err := pipeline.Run(extractOpts); err != nil {
				log.Printf("[%s] ERROR: extraction failed after %v: %v", timestamp, time.Since(started), err)
				return
			}
			log.Printf("[%s] SUCCESS: pipeline run completed in %v", timestamp, time.Since(started))
		})
		if err != nil {
			log.Fatalf("Failed to add cron job: %v", err)
		}

		c.Start()
		log.Printf("kev-vs-epss daemon started - refreshing weekly (%s 06:00)", strings.ToUpper(*weekday))

		entries := c.Entries()
		if len(entries) > 0 {
			log.Printf("Next scheduled run: %v", entries[0].Next)
		}

		select {}
	default:
		flag.Usage()
		os.Exit(0)
	}
}

// parseFloatList parses a comma-separated list of floats, ignoring empty
// items, the way thresholds and growth factors are supplied.
func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %v", item, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func buildExtractOptions(kevCSV, snapDir, outCSV, figDir, thresholds, growth string, verbose int) (pipeline.Options, error) {
	t, err := parseFloatList(thresholds)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("thresholds: %v", err)
	}
	g, err := parseFloatList(growth)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("growth: %v", err)
	}
	return pipeline.Options{
		KevCSV:        kevCSV,
		SnapshotDir:   snapDir,
		OutCSV:        outCSV,
		FigDir:        figDir,
		Thresholds:    t,
		GrowthFactors: g,
		Verbose:       verbose,
	}, nil
}

func buildDownloadOptions(start, end, weekday, snapDir string, retries, timeout int, sleep float64, force bool, verbose int) (epss.DownloadOptions, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)

	startDate := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if start != "" {
		var err error
		startDate, err = time.Parse("2006-01-02", start)
		if err != nil {
			return epss.DownloadOptions{}, fmt.Errorf("start: %v", err)
		}
	}

	endDate := now
	if end != "" {
		var err error
		endDate, err = time.Parse("2006-01-02", end)
		if err != nil {
			return epss.DownloadOptions{}, fmt.Errorf("end: %v", err)
		}
	}
	if endDate.Before(startDate) {
		return epss.DownloadOptions{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	weekdays := map[string]time.Weekday{
		"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
		"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday, "sun": time.Sunday,
	}
	wd, ok := weekdays[strings.ToLower(weekday)]
	if !ok {
		return epss.DownloadOptions{}, fmt.Errorf("unknown weekday %q", weekday)
	}

	return epss.DownloadOptions{
		Start:   startDate,
		End:     endDate,
		Weekday: wd,
		OutDir:  snapDir,
		Retries: retries,
		Timeout: time.Duration(timeout) * time.Second,
		Sleep:   time.Duration(sleep * float64(time.Second)),
		Force:   force,
		Verbose: verbose,
	}, nil
}
