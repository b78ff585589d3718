package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/readweb/internal/model"
	"github.com/xxxsen/readweb/internal/pkg/dbutil"
	appErr "github.com/xxxsen/readweb/internal/pkg/errors"
	"github.com/xxxsen/readweb/internal/pkg/timeutil"
	"github.com/xxxsen/readweb/internal/repo"
)

const (
	maxCommentRunes     = 500
	defaultCommentLimit = 50
	maxCommentLimit     = 200
)

type CommentService struct {
	db          *sqlx.DB
	novels      *repo.NovelRepo
	comments    *repo.CommentRepo
	invalidator *Invalidator
}

func NewCommentService(db *sqlx.DB, novels *repo.NovelRepo, comments *repo.CommentRepo, invalidator *Invalidator) *CommentService {
	return &CommentService{db: db, novels: novels, comments: comments, invalidator: invalidator}
}

// Create stores a comment and invalidates the novel's summary atomically.
// Content longer than maxCommentRunes is cut.
func (s *CommentService) Create(ctx context.Context, novelID, userID int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrEmptyComment
	}
	if runes := []rune(content); len(runes) > maxCommentRunes {
		content = string(runes[:maxCommentRunes])
	}
	comment := &model.Comment{
		NovelID: novelID,
		UserID:  userID,
		Content: content,
		Ctime:   timeutil.NowUnix(),
	}
	err := dbutil.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.novels.WithTx(tx).GetByID(ctx, novelID); err != nil {
			return err
		}
		if err := s.comments.WithTx(tx).Create(ctx, comment); err != nil {
			return err
		}
		return s.invalidator.OnCommentCreated(ctx, tx, novelID)
	})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("comment created",
		zap.Int64("novel_id", novelID), zap.Int64("comment_id", comment.ID))
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, commentID int64) error {
	return dbutil.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		comments := s.comments.WithTx(tx)
		comment, err := comments.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		if err := comments.Delete(ctx, commentID); err != nil {
			return err
		}
		return s.invalidator.OnCommentDeleted(ctx, tx, comment.NovelID)
	})
}

// ListRecent returns the newest comments of a novel first.
func (s *CommentService) ListRecent(ctx context.Context, novelID int64, limit int) ([]model.Comment, error) {
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	if limit > maxCommentLimit {
		limit = maxCommentLimit
	}
	if _, err := s.novels.GetByID(ctx, novelID); err != nil {
		return nil, err
	}
	return s.comments.ListRecent(ctx, novelID, uint(limit))
}
