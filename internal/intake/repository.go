package intake

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	insertRowQuery = `
		INSERT INTO submission_rows (seq, record_id, submission_id, captured_date, captured_time, operator, "values")
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	insertImageQuery = `INSERT INTO submission_images (seq, column_index, url) VALUES ($1, $2, $3)`
)

type postgresSink struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPostgresSink stores rows in the submission_rows table. Catalog columns
// are kept positionally in a text array so the layout matches the sheet.
// Image annotations go to submission_images after the rows are committed.
func NewPostgresSink(db *sql.DB, logger zerolog.Logger) Sink {
	return &postgresSink{db: db, log: logger.With().Str("sink", "postgres").Logger()}
}

func (r *postgresSink) RecoverCounters(ctx context.Context) (Counters, error) {
	var c Counters
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(record_id), 0) FROM submission_rows`,
	).Scan(&c.LastSequence, &c.LastRecordID)
	if err != nil {
		return Counters{}, fmt.Errorf("recover counters: %w", err)
	}
	return c, nil
}

func (r *postgresSink) AppendSubmission(ctx context.Context, p *Projection) (Receipt, error) {
	if len(p.Rows) == 0 {
		return Receipt{RecordID: p.RecordID}, nil
	}

	seqs, err := r.insertRows(ctx, p)
	if err != nil {
		return Receipt{}, err
	}
	if err := r.insertImages(ctx, seqs, p.Annotations); err != nil {
		r.log.Warn().Err(err).
			Int64("record_id", p.RecordID).
			Int("images", len(p.Annotations)).
			Msg("image annotations not stored")
	}
	return Receipt{
		RecordID: p.RecordID,
		Rows:     len(p.Rows),
		Location: fmt.Sprintf("submission_rows %d-%d", seqs[0], seqs[len(seqs)-1]),
	}, nil
}

// insertRows writes every row of the submission or none of them.
func (r *postgresSink) insertRows(ctx context.Context, p *Projection) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seqs := make([]int64, len(p.Rows))
	for i, row := range p.Rows {
		seq, err := strconv.ParseInt(row[ColumnSequence], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad sequence %q: %w", i, row[ColumnSequence], err)
		}
		seqs[i] = seq
		_, err = tx.ExecContext(ctx, insertRowQuery,
			seq, p.RecordID, p.SubmissionID, row[ColumnDate], row[ColumnTime], p.Operator,
			pq.Array(row[leadingColumns:]))
		if err != nil {
			return nil, fmt.Errorf("insert row %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return seqs, nil
}

// insertImages runs after the rows are committed. A failure here leaves the
// rows in place.
func (r *postgresSink) insertImages(ctx context.Context, seqs []int64, annotations []Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin images: %w", err)
	}
	defer tx.Rollback()

	for _, a := range annotations {
		if a.Row < 0 || a.Row >= len(seqs) {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertImageQuery, seqs[a.Row], a.Column, a.URL); err != nil {
			return fmt.Errorf("insert image for row %d: %w", seqs[a.Row], err)
		}
	}
	return tx.Commit()
}
