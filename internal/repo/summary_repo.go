package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/readweb/internal/model"
)

// SummaryRepo persists one SummaryRecord per novel. Every write is a single
// statement; callers never read-modify-write across round trips.
type SummaryRepo struct {
	db sqlx.ExtContext
}

func NewSummaryRepo(db sqlx.ExtContext) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) WithTx(tx *sqlx.Tx) *SummaryRepo {
	return &SummaryRepo{db: tx}
}

type summaryRow struct {
	NovelID    int64          `db:"novel_id"`
	Summary    sql.NullString `db:"summary_text"`
	Watermark  int64          `db:"watermark"`
	Dirty      bool           `db:"dirty"`
	Generation int64          `db:"generation"`
	Ctime      int64          `db:"ctime"`
	Mtime      int64          `db:"mtime"`
}

func (row *summaryRow) toModel() *model.SummaryRecord {
	rec := &model.SummaryRecord{
		NovelID:    row.NovelID,
		Watermark:  row.Watermark,
		Dirty:      row.Dirty,
		Generation: row.Generation,
		Ctime:      row.Ctime,
		Mtime:      row.Mtime,
	}
	if row.Summary.Valid {
		text := row.Summary.String
		rec.Summary = &text
	}
	return rec
}

const summaryColumns = `novel_id, summary_text, watermark, dirty, generation, ctime, mtime`

// Get returns nil, nil when the novel has no record yet.
func (r *SummaryRepo) Get(ctx context.Context, novelID int64) (*model.SummaryRecord, error) {
	query := r.db.Rebind(`SELECT ` + summaryColumns + ` FROM summary_records WHERE novel_id = ?`)
	var row summaryRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, novelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// MarkDirty creates a never-summarized record or flags the existing one as
// stale, keeping its text and watermark.
func (r *SummaryRepo) MarkDirty(ctx context.Context, novelID int64, now int64) error {
	query := r.db.Rebind(`
		INSERT INTO summary_records (` + summaryColumns + `)
		VALUES (?, NULL, 0, TRUE, 1, ?, ?)
		ON CONFLICT (novel_id) DO UPDATE SET
			dirty = TRUE,
			generation = summary_records.generation + 1,
			mtime = excluded.mtime
	`)
	_, err := r.db.ExecContext(ctx, query, novelID, now, now)
	return err
}

// EnsureDirty creates a never-summarized record if none exists.
func (r *SummaryRepo) EnsureDirty(ctx context.Context, novelID int64, now int64) error {
	query := r.db.Rebind(`
		INSERT INTO summary_records (` + summaryColumns + `)
		VALUES (?, NULL, 0, TRUE, 0, ?, ?)
		ON CONFLICT (novel_id) DO NOTHING
	`)
	_, err := r.db.ExecContext(ctx, query, novelID, now, now)
	return err
}

// SaveSummary stores a successful recompute. The write only applies when the
// stored watermark is not ahead of watermark; it reports false when a newer
// result already won. The record ends up clean only if no invalidation has
// happened since generation was observed.
func (r *SummaryRepo) SaveSummary(ctx context.Context, novelID int64, summary string, watermark, generation, now int64) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO summary_records (` + summaryColumns + `)
		VALUES (?, ?, ?, FALSE, ?, ?, ?)
		ON CONFLICT (novel_id) DO UPDATE SET
			summary_text = excluded.summary_text,
			watermark = excluded.watermark,
			dirty = CASE WHEN summary_records.generation = excluded.generation THEN FALSE ELSE TRUE END,
			mtime = excluded.mtime
		WHERE summary_records.watermark <= excluded.watermark
	`)
	res, err := r.db.ExecContext(ctx, query, novelID, summary, watermark, generation, now, now)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// MarkClean clears the dirty flag when nothing changed since the caller read
// the record at generation and watermark.
func (r *SummaryRepo) MarkClean(ctx context.Context, novelID, generation, watermark, now int64) (bool, error) {
	query := r.db.Rebind(`
		UPDATE summary_records SET dirty = FALSE, mtime = ?
		WHERE novel_id = ? AND generation = ? AND watermark = ? AND summary_text IS NOT NULL
	`)
	res, err := r.db.ExecContext(ctx, query, now, novelID, generation, watermark)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// MarkStale re-flags a record after a failed recompute, unless another writer
// has already moved the watermark.
func (r *SummaryRepo) MarkStale(ctx context.Context, novelID, watermark, now int64) error {
	query := r.db.Rebind(`
		UPDATE summary_records SET dirty = TRUE, mtime = ?
		WHERE novel_id = ? AND watermark = ?
	`)
	_, err := r.db.ExecContext(ctx, query, now, novelID, watermark)
	return err
}

// ListDirty returns dirty records that already hold a summary, oldest first.
func (r *SummaryRepo) ListDirty(ctx context.Context, limit int) ([]model.SummaryRecord, error) {
	query := r.db.Rebind(`
		SELECT ` + summaryColumns + ` FROM summary_records
		WHERE dirty = TRUE AND summary_text IS NOT NULL
		ORDER BY mtime ASC
		LIMIT ?
	`)
	var rows []summaryRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, limit); err != nil {
		return nil, err
	}
	records := make([]model.SummaryRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *rows[i].toModel())
	}
	return records, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
