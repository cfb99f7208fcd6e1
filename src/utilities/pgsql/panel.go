// Package pgsql mirrors the extracted panel into Postgres for ad-hoc
// querying. The CSV artifact stays the source of truth; the mirror is
// replaced wholesale on every run.
package pgsql

import (
	"context"
	"time"

	"github.com/scadastrangelove/kev-vs-epss/src/panel"
	"github.com/uptrace/bun"
)

// PanelRow is the bun model for one extracted panel row.
type PanelRow struct {
	bun.BaseModel `bun:"table:panel_rows"`

	Id           int64     `bun:"id,pk,autoincrement"`
	CVE          string    `bun:"cve"`
	KevDateAdded time.Time `bun:"kev_date_added"`
	SnapshotDate time.Time `bun:"snapshot_date"`
	Score        float64   `bun:"epss"`
	Percentile   float64   `bun:"percentile"`
}

const insertBatchSize = 5000

// ReplacePanel ensures the panel_rows table exists, drops the previous
// run's rows, and bulk-inserts the current panel in batches.
func ReplacePanel(db *bun.DB, rows []panel.Row) error {
	ctx := context.Background()

	_, err := db.NewCreateTable().Model((*PanelRow)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewDelete().Model((*PanelRow)(nil)).Where("TRUE").Exec(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([]PanelRow, 0, end-start)
		for _, r := range rows[start:end] {
			batch = append(batch, PanelRow{
				CVE:          r.CVE,
				KevDateAdded: r.KevDateAdded,
				SnapshotDate: r.SnapshotDate,
				Score:        r.Score,
				Percentile:   r.Percentile,
			})
		}

		if _, err := db.NewInsert().Model(&batch).Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
