package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/readweb/internal/model"
	"github.com/xxxsen/readweb/internal/pkg/dbutil"
	appErr "github.com/xxxsen/readweb/internal/pkg/errors"
)

var commentFields = []string{"id", "novel_id", "user_id", "content", "ctime"}

// CommentRepo is the append-only comment store. Ids are assigned by the
// database sequence and are strictly increasing across all novels.
type CommentRepo struct {
	db sqlx.ExtContext
}

func NewCommentRepo(db sqlx.ExtContext) *CommentRepo {
	return &CommentRepo{db: db}
}

// WithTx returns a repo bound to tx.
func (r *CommentRepo) WithTx(tx *sqlx.Tx) *CommentRepo {
	return &CommentRepo{db: tx}
}

func (r *CommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	data := map[string]interface{}{
		"novel_id": comment.NovelID,
		"user_id":  comment.UserID,
		"content":  comment.Content,
		"ctime":    comment.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("comments", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr+" RETURNING id", args)
	return r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&comment.ID)
}

func (r *CommentRepo) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("comments", where, commentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	var comment model.Comment
	if err := sqlx.GetContext(ctx, r.db, &comment, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepo) Delete(ctx context.Context, id int64) error {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildDelete("comments", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListByNovel returns every comment of the novel, ascending by id.
func (r *CommentRepo) ListByNovel(ctx context.Context, novelID int64) ([]model.Comment, error) {
	where := map[string]interface{}{
		"novel_id": novelID,
		"_orderby": "id asc",
	}
	return r.list(ctx, where)
}

// ListAfter returns the comments of the novel with id > watermark, ascending by id.
func (r *CommentRepo) ListAfter(ctx context.Context, novelID, watermark int64) ([]model.Comment, error) {
	where := map[string]interface{}{
		"novel_id": novelID,
		"id >":     watermark,
		"_orderby": "id asc",
	}
	return r.list(ctx, where)
}

// ListRecent returns the newest comments of the novel first.
func (r *CommentRepo) ListRecent(ctx context.Context, novelID int64, limit uint) ([]model.Comment, error) {
	where := map[string]interface{}{
		"novel_id": novelID,
		"_orderby": "id desc",
		"_limit":   []uint{0, limit},
	}
	return r.list(ctx, where)
}

func (r *CommentRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Comment, error) {
	sqlStr, args, err := builder.BuildSelect("comments", where, commentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	comments := make([]model.Comment, 0)
	if err := sqlx.SelectContext(ctx, r.db, &comments, sqlStr, args...); err != nil {
		return nil, err
	}
	return comments, nil
}
