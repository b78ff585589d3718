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

type NovelRepo struct {
	db sqlx.ExtContext
}

func NewNovelRepo(db sqlx.ExtContext) *NovelRepo {
	return &NovelRepo{db: db}
}

func (r *NovelRepo) WithTx(tx *sqlx.Tx) *NovelRepo {
	return &NovelRepo{db: tx}
}

func (r *NovelRepo) Create(ctx context.Context, novel *model.Novel) error {
	data := map[string]interface{}{
		"title": novel.Title,
		"ctime": novel.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("novels", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr+" RETURNING id", args)
	return r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&novel.ID)
}

func (r *NovelRepo) GetByID(ctx context.Context, id int64) (*model.Novel, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("novels", where, []string{"id", "title", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	var novel model.Novel
	if err := sqlx.GetContext(ctx, r.db, &novel, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &novel, nil
}
