package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/readweb/internal/pkg/timeutil"
	"github.com/xxxsen/readweb/internal/repo"
)

// Invalidator marks a novel's summary stale whenever its comment set changes.
// It must run in the same transaction as the comment write.
type Invalidator struct {
	summaries *repo.SummaryRepo
}

func NewInvalidator(summaries *repo.SummaryRepo) *Invalidator {
	return &Invalidator{summaries: summaries}
}

func (i *Invalidator) OnCommentCreated(ctx context.Context, tx *sqlx.Tx, novelID int64) error {
	return i.summaries.WithTx(tx).MarkDirty(ctx, novelID, timeutil.NowUnix())
}

// OnCommentDeleted only flags the record. Content of a deleted comment that
// was already folded into the summary stays there until a full rebuild.
func (i *Invalidator) OnCommentDeleted(ctx context.Context, tx *sqlx.Tx, novelID int64) error {
	return i.summaries.WithTx(tx).MarkDirty(ctx, novelID, timeutil.NowUnix())
}
