// Package pipeline wires the extraction run together: KEV catalog load,
// snapshot join, panel artifact, latency metrics, figures, and the
// textual summary.
package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/scadastrangelove/kev-vs-epss/src/ecdf"
	"github.com/scadastrangelove/kev-vs-epss/src/feeds/kev"
	"github.com/scadastrangelove/kev-vs-epss/src/latency"
	"github.com/scadastrangelove/kev-vs-epss/src/panel"
	"github.com/scadastrangelove/kev-vs-epss/src/utilities/pgsql"
	"github.com/uptrace/bun"
)

// Options configures one extraction run. Verbosity is threaded through
// explicitly; no package keeps global state.
type Options struct {
	KevCSV        string
	SnapshotDir   string
	OutCSV        string
	FigDir        string
	Thresholds    []float64
	GrowthFactors []float64
	Verbose       int

	// DB, when non-nil, receives a mirror of the panel rows. Mirror
	// failures are logged, not fatal.
	DB *bun.DB
}

// Run executes one full extraction. It fails only on a catalog schema
// violation or when no panel rows survive the join; unusable snapshot
// files and malformed rows are skipped where they occur.
func Run(opts Options) error {
	catalog, err := kev.LoadCatalog(opts.KevCSV, opts.Verbose)
	if err != nil {
		return err
	}

	rows, err := panel.Build(catalog, opts.SnapshotDir, opts.Verbose)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: check paths and file formats", panel.ErrEmptyPanel)
	}

	if err := panel.WriteCSV(rows, opts.OutCSV); err != nil {
		return err
	}
	if opts.Verbose >= 1 {
		log.Printf("[OUT] wrote panel CSV: %s (rows=%d)", opts.OutCSV, len(rows))
	}

	if opts.DB != nil {
		if err := pgsql.ReplacePanel(opts.DB, rows); err != nil {
			log.Printf("WARN: panel mirror failed: %v", err)
		} else if opts.Verbose >= 1 {
			log.Printf("[OUT] mirrored %d panel rows to Postgres", len(rows))
		}
	}

	metrics := latency.Compute(rows, opts.Thresholds, opts.GrowthFactors)

	figThreshold := filepath.Join(opts.FigDir, "fig_time_to_threshold_ecdf.png")
	figGrowth := filepath.Join(opts.FigDir, "fig_catchup_latency_ecdf.png")
	if err := ecdf.PlotThresholds(metrics.TimeToThreshold, figThreshold); err != nil {
		return fmt.Errorf("rendering threshold figure: %w", err)
	}
	if err := ecdf.PlotGrowth(metrics.TimeToGrowth, figGrowth); err != nil {
		return fmt.Errorf("rendering growth figure: %w", err)
	}

	printSummary(metrics, opts.Thresholds, opts.GrowthFactors)
	log.Printf("Figures:\n  %s\n  %s", figThreshold, figGrowth)
	return nil
}

// printSummary emits the observed/censored counts per metric, suitable
// for quoting alongside the figures.
func printSummary(m latency.Metrics, thresholds, growthFactors []float64) {
	log.Println("=== Latency summary (weekly resolution) ===")
	log.Printf("KEV CVEs with at least one snapshot on/after dateAdded: %d", m.UsedEntities)

	sortedT := append([]float64(nil), thresholds...)
	sort.Float64s(sortedT)
	for _, t := range sortedT {
		log.Printf("Time-to EPSS>=%g: observed=%d, censored=%d",
			t, len(m.TimeToThreshold[t]), m.CensoredThreshold[t])
	}

	sortedG := append([]float64(nil), growthFactors...)
	sort.Float64s(sortedG)
	for _, g := range sortedG {
		log.Printf("Time-to EPSS>=baseline*%d: observed=%d, censored=%d",
			int(g), len(m.TimeToGrowth[g]), m.CensoredGrowth[g])
	}
}
