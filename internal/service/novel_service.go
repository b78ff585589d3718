package service

import (
	"context"
	"strings"

	"github.com/xxxsen/readweb/internal/model"
	appErr "github.com/xxxsen/readweb/internal/pkg/errors"
	"github.com/xxxsen/readweb/internal/pkg/timeutil"
	"github.com/xxxsen/readweb/internal/repo"
)

const maxTitleRunes = 255

type NovelService struct {
	novels *repo.NovelRepo
}

func NewNovelService(novels *repo.NovelRepo) *NovelService {
	return &NovelService{novels: novels}
}

func (s *NovelService) Create(ctx context.Context, title string) (*model.Novel, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.ErrEmptyTitle
	}
	if len([]rune(title)) > maxTitleRunes {
		return nil, appErr.ErrInvalid
	}
	novel := &model.Novel{Title: title, Ctime: timeutil.NowUnix()}
	if err := s.novels.Create(ctx, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

func (s *NovelService) Get(ctx context.Context, id int64) (*model.Novel, error) {
	return s.novels.GetByID(ctx, id)
}
