// Package latency computes how long after a CVE enters the KEV catalog
// its EPSS score crosses fixed thresholds or grows by fixed factors over
// its baseline. Entities that never cross a target within the available
// snapshots are right-censored for that target and counted separately.
package latency

import (
	"sort"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/panel"
	"github.com/scadastrangelove/kev-vs-epss/src/utilities/dates"
)

// Metrics holds the observed day counts and censored counts per absolute
// threshold and per growth factor, plus the number of CVEs that had at
// least one snapshot on/after their KEV date and therefore entered the
// analysis at all.
type Metrics struct {
	TimeToThreshold   map[float64][]int
	CensoredThreshold map[float64]int
	TimeToGrowth      map[float64][]int
	CensoredGrowth    map[float64]int
	UsedEntities      int
}

// Compute derives the latency metrics from the full panel.
//
// Per CVE: rows are grouped and stable-sorted by snapshot date (ties
// keep panel order, so re-ingested duplicate dates resolve to the
// earliest-ingested row). The baseline is the first row on/after the KEV
// date; a CVE without one is skipped entirely — with zero post-inclusion
// data it has no target to fail, so it counts as neither observed nor
// censored. For each threshold t the first row on/after the KEV date
// with score >= t yields an observation in whole days since inclusion;
// for each growth factor g the target is baseline*g with the same
// first-hit scan. A baseline score of exactly 0 makes every growth
// target 0, so the baseline row itself hits and yields a 0-day
// observation; that is the intended reading, not a degenerate case to
// filter.
func Compute(rows []panel.Row, thresholds, growthFactors []float64) Metrics {
	series := make(map[string][]panel.Row)
	inclusion := make(map[string]time.Time)
	var order []string

	for _, r := range rows {
		if _, seen := series[r.CVE]; !seen {
			order = append(order, r.CVE)
		}
		series[r.CVE] = append(series[r.CVE], r)
		inclusion[r.CVE] = r.KevDateAdded
	}

	for _, cve := range order {
		s := series[cve]
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].SnapshotDate.Before(s[j].SnapshotDate)
		})
	}

	m := Metrics{
		TimeToThreshold:   make(map[float64][]int, len(thresholds)),
		CensoredThreshold: make(map[float64]int, len(thresholds)),
		TimeToGrowth:      make(map[float64][]int, len(growthFactors)),
		CensoredGrowth:    make(map[float64]int, len(growthFactors)),
	}
	for _, t := range thresholds {
		m.TimeToThreshold[t] = nil
		m.CensoredThreshold[t] = 0
	}
	for _, g := range growthFactors {
		m.TimeToGrowth[g] = nil
		m.CensoredGrowth[g] = 0
	}

	for _, cve := range order {
		s := series[cve]
		d0 := inclusion[cve]

		baseline, ok := firstOnOrAfter(s, d0, 0)
		if !ok {
			continue
		}
		m.UsedEntities++

		for _, t := range thresholds {
			if hit, ok := firstOnOrAfter(s, d0, t); ok {
				m.TimeToThreshold[t] = append(m.TimeToThreshold[t], dates.Days(d0, hit.SnapshotDate))
			} else {
				m.CensoredThreshold[t]++
			}
		}

		for _, g := range growthFactors {
			target := baseline.Score * g
			if hit, ok := firstOnOrAfter(s, d0, target); ok {
				m.TimeToGrowth[g] = append(m.TimeToGrowth[g], dates.Days(d0, hit.SnapshotDate))
			} else {
				m.CensoredGrowth[g]++
			}
		}
	}

	return m
}

// firstOnOrAfter scans a date-sorted series and returns the first row
// whose snapshot date is on/after d0 and whose score is >= target.
// Scores are not monotonic over time, so this is a linear scan.
func firstOnOrAfter(s []panel.Row, d0 time.Time, target float64) (panel.Row, bool) {
	for _, r := range s {
		if r.SnapshotDate.Before(d0) {
			continue
		}
		if r.Score >= target {
			return r, true
		}
	}
	return panel.Row{}, false
}
