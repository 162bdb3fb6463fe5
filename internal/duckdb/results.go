package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/deluair/alphagenome/internal/analyzer"
)

// PredictionRow is one assay of one prediction result.
type PredictionRow struct {
	RunID            string
	Chrom            string
	Pos              int64
	Ref              string
	Alt              string
	Assay            string
	RefKind          string
	RefLength        sql.NullInt64
	RefMean          sql.NullFloat64
	RefStd           sql.NullFloat64
	RefMax           sql.NullFloat64
	RefMin           sql.NullFloat64
	AltMean          sql.NullFloat64
	MeanDifference   sql.NullFloat64
	MaxAbsDifference sql.NullFloat64
	TotalEffect      sql.NullFloat64
	Correlation      sql.NullFloat64
	CreatedAt        time.Time
}

// rowKey is the composite key for deduplicating rows before writing.
type rowKey struct {
	chrom, ref, alt, assay string
	pos                    int64
}

// Flatten converts results into rows, one per assay. Repeated
// (variant, assay) pairs keep their first occurrence.
func Flatten(runID string, results []*analyzer.Result) []PredictionRow {
	seen := make(map[rowKey]bool)
	var rows []PredictionRow
	for _, r := range results {
		for _, assay := range r.Assays() {
			k := rowKey{r.Chromosome, r.Reference, r.Alternate, assay, r.Position}
			if seen[k] {
				continue
			}
			seen[k] = true

			p := r.Predictions[assay]
			row := PredictionRow{
				RunID:     runID,
				Chrom:     r.Chromosome,
				Pos:       r.Position,
				Ref:       r.Reference,
				Alt:       r.Alternate,
				Assay:     assay,
				CreatedAt: r.CreatedAt,
			}
			if s := p.Reference; s != nil {
				row.RefKind = string(s.Kind)
				if s.Recognized() {
					row.RefLength = sql.NullInt64{Int64: int64(s.Length), Valid: true}
					row.RefMean = valid(s.Mean)
					row.RefStd = valid(s.Std)
					row.RefMax = valid(s.Max)
					row.RefMin = valid(s.Min)
				}
			}
			if p.Alternate.Recognized() {
				row.AltMean = valid(p.Alternate.Mean)
			}
			if d := p.Difference; d != nil {
				row.MeanDifference = valid(d.MeanDifference)
				row.MaxAbsDifference = valid(d.MaxAbsoluteDifference)
				row.TotalEffect = valid(d.TotalAbsoluteEffect)
				row.Correlation = valid(d.Correlation)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func valid(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

// nullable converts a SQL null wrapper into an appender value.
func nullable(v driver.Valuer) any {
	val, _ := v.Value()
	return val
}

// WriteResults batch-inserts the results of one run using the Appender API.
// It returns the number of rows written.
func (s *Store) WriteResults(runID string, results []*analyzer.Result) (int, error) {
	rows := Flatten(runID, results)
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "prediction_results")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range rows {
		if err := appender.AppendRow(
			r.RunID, r.Chrom, r.Pos, r.Ref, r.Alt, r.Assay, r.RefKind,
			nullable(r.RefLength), nullable(r.RefMean), nullable(r.RefStd),
			nullable(r.RefMax), nullable(r.RefMin), nullable(r.AltMean),
			nullable(r.MeanDifference), nullable(r.MaxAbsDifference),
			nullable(r.TotalEffect), nullable(r.Correlation),
			r.CreatedAt.UTC(),
		); err != nil {
			return 0, fmt.Errorf("append prediction row: %w", err)
		}
	}

	if err := appender.Flush(); err != nil {
		return 0, fmt.Errorf("flush prediction rows: %w", err)
	}
	return len(rows), nil
}

// ClearResults removes all stored prediction rows.
func (s *Store) ClearResults() error {
	_, err := s.db.Exec("DELETE FROM prediction_results")
	return err
}

// Count returns the number of stored rows.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM prediction_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count prediction rows: %w", err)
	}
	return n, nil
}

const selectRows = `SELECT
	run_id, chrom, pos, ref, alt, assay, ref_kind,
	ref_length, ref_mean, ref_std, ref_max, ref_min,
	alt_mean, mean_difference, max_abs_difference, total_effect, correlation,
	created_at
	FROM prediction_results`

// LookupVariant returns every stored row for a variant, oldest first.
func (s *Store) LookupVariant(chrom string, pos int64, ref, alt string) ([]PredictionRow, error) {
	rows, err := s.db.Query(selectRows+`
		WHERE chrom=? AND pos=? AND ref=? AND alt=?
		ORDER BY created_at, assay`,
		chrom, pos, ref, alt)
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// TopEffects returns the n rows of an assay with the largest total absolute
// effect. Rows without a difference are excluded.
func (s *Store) TopEffects(assay string, n int) ([]PredictionRow, error) {
	rows, err := s.db.Query(selectRows+fmt.Sprintf(`
		WHERE assay=? AND total_effect IS NOT NULL
		ORDER BY total_effect DESC, chrom, pos
		LIMIT %d`, max(n, 0)),
		assay)
	if err != nil {
		return nil, fmt.Errorf("query top effects: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// RunRows returns the rows written by one run.
func (s *Store) RunRows(runID string) ([]PredictionRow, error) {
	rows, err := s.db.Query(selectRows+`
		WHERE run_id=?
		ORDER BY chrom, pos, ref, alt, assay`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows scans rows into PredictionRow slices.
func scanRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]PredictionRow, error) {
	var out []PredictionRow
	for rows.Next() {
		var r PredictionRow
		if err := rows.Scan(
			&r.RunID, &r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.Assay, &r.RefKind,
			&r.RefLength, &r.RefMean, &r.RefStd, &r.RefMax, &r.RefMin,
			&r.AltMean, &r.MeanDifference, &r.MaxAbsDifference, &r.TotalEffect, &r.Correlation,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction rows: %w", err)
	}
	return out, nil
}
