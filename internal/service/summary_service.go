package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/readweb/internal/lease"
	"github.com/xxxsen/readweb/internal/metrics"
	"github.com/xxxsen/readweb/internal/model"
	"github.com/xxxsen/readweb/internal/pkg/timeutil"
	"github.com/xxxsen/readweb/internal/repo"
	"github.com/xxxsen/readweb/internal/summarizer"
)

const (
	StateFresh        = "fresh"
	StateCached       = "cached"
	StateStale        = "stale"
	StateInsufficient = "insufficient"
	StateUnavailable  = "unavailable"
)

const (
	InsufficientDataText = "Not enough reader comments to summarize yet."
	UnavailableText      = "The comment summary is temporarily unavailable. Please try again later."

	defaultBatchSize = 50
)

type SummaryResult struct {
	Summary   string `json:"summary"`
	FromCache bool   `json:"from_cache"`
	State     string `json:"state"`
}

// SummaryService serves a novel's comment summary, recomputing it from the
// comments added since the last successful run when the cache is stale.
// Summarizer failures never surface as errors; only store failures do.
type SummaryService struct {
	novels     *repo.NovelRepo
	comments   *repo.CommentRepo
	summaries  *repo.SummaryRepo
	summarizer summarizer.Summarizer
	locker     lease.Locker
	recorder   metrics.Recorder
	batchSize  int
	flights    singleflight.Group
}

func NewSummaryService(
	novels *repo.NovelRepo,
	comments *repo.CommentRepo,
	summaries *repo.SummaryRepo,
	sum summarizer.Summarizer,
	locker lease.Locker,
	recorder metrics.Recorder,
	batchSize int,
) *SummaryService {
	if locker == nil {
		locker = lease.NewLocal()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SummaryService{
		novels:     novels,
		comments:   comments,
		summaries:  summaries,
		summarizer: sum,
		locker:     locker,
		recorder:   recorder,
		batchSize:  batchSize,
	}
}

func (s *SummaryService) GetSummary(ctx context.Context, novelID int64) (*SummaryResult, error) {
	novel, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	rec, err := s.summaries.Get(ctx, novelID)
	if err != nil {
		return nil, fmt.Errorf("load summary record: %w", err)
	}
	if rec.HasSummary() && !rec.Dirty {
		s.recorder.RecordSummary(StateCached)
		return &SummaryResult{Summary: rec.SummaryText(), FromCache: true, State: StateCached}, nil
	}
	// Callers for the same novel share one recompute. It must not be cut
	// short when the leading caller goes away.
	v, err, _ := s.flights.Do(strconv.FormatInt(novelID, 10), func() (interface{}, error) {
		return s.recompute(context.WithoutCancel(ctx), novel)
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*SummaryResult)
	s.recorder.RecordSummary(res.State)
	return &res, nil
}

func (s *SummaryService) recompute(ctx context.Context, novel *model.Novel) (*SummaryResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int64("novel_id", novel.ID))

	// another flight may have finished between the caller's read and ours
	rec, err := s.summaries.Get(ctx, novel.ID)
	if err != nil {
		return nil, fmt.Errorf("load summary record: %w", err)
	}
	if rec.HasSummary() && !rec.Dirty {
		return &SummaryResult{Summary: rec.SummaryText(), FromCache: true, State: StateCached}, nil
	}

	unlock, ok, err := s.locker.TryLock(ctx, "novel:"+strconv.FormatInt(novel.ID, 10))
	if err != nil {
		logger.Warn("acquire summary lease failed, recomputing without it", zap.Error(err))
		unlock, ok = func() {}, true
	}
	if !ok {
		s.recorder.RecordLeaseBusy()
		if rec.HasSummary() {
			logger.Debug("summary lease busy, serving prior summary")
			return &SummaryResult{Summary: rec.SummaryText(), FromCache: true, State: StateStale}, nil
		}
	} else {
		defer unlock()
	}

	var (
		prior      = rec.SummaryText()
		watermark  int64
		generation int64
	)
	if rec != nil {
		watermark = rec.Watermark
		generation = rec.Generation
	}

	var window []model.Comment
	if rec.HasSummary() && watermark > 0 {
		window, err = s.comments.ListAfter(ctx, novel.ID, watermark)
	} else {
		window, err = s.comments.ListByNovel(ctx, novel.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	if len(window) == 0 {
		if !rec.HasSummary() {
			return &SummaryResult{Summary: InsufficientDataText, State: StateInsufficient}, nil
		}
		if _, err := s.summaries.MarkClean(ctx, novel.ID, generation, watermark, timeutil.NowUnix()); err != nil {
			return nil, fmt.Errorf("mark summary clean: %w", err)
		}
		return &SummaryResult{Summary: prior, FromCache: true, State: StateCached}, nil
	}

	text, err := s.summarize(ctx, novel.Title, prior, window)
	if err != nil {
		logger.Warn("summarizer failed", zap.Int("comments", len(window)), zap.Error(err))
		if rec.HasSummary() {
			if err := s.summaries.MarkStale(ctx, novel.ID, watermark, timeutil.NowUnix()); err != nil {
				return nil, fmt.Errorf("mark summary stale: %w", err)
			}
			return &SummaryResult{Summary: prior, FromCache: true, State: StateStale}, nil
		}
		if err := s.summaries.EnsureDirty(ctx, novel.ID, timeutil.NowUnix()); err != nil {
			return nil, fmt.Errorf("ensure summary record: %w", err)
		}
		return &SummaryResult{Summary: UnavailableText, State: StateUnavailable}, nil
	}

	newWatermark := watermark
	for _, c := range window {
		newWatermark = max(newWatermark, c.ID)
	}
	applied, err := s.summaries.SaveSummary(ctx, novel.ID, text, newWatermark, generation, timeutil.NowUnix())
	if err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	if !applied {
		s.recorder.RecordStaleWrite()
		logger.Warn("newer summary already stored, discarding result", zap.Int64("watermark", newWatermark))
		latest, err := s.summaries.Get(ctx, novel.ID)
		if err != nil {
			return nil, fmt.Errorf("reload summary record: %w", err)
		}
		state := StateCached
		if latest.Dirty {
			state = StateStale
		}
		return &SummaryResult{Summary: latest.SummaryText(), FromCache: true, State: state}, nil
	}
	logger.Info("summary recomputed",
		zap.Int("comments", len(window)),
		zap.Int64("watermark", newWatermark),
		zap.Bool("incremental", prior != ""),
	)
	return &SummaryResult{Summary: text, State: StateFresh}, nil
}

// summarize folds window through the summarizer in id order, batchSize
// comments at a time, each batch building on the previous result.
func (s *SummaryService) summarize(ctx context.Context, title, prior string, window []model.Comment) (string, error) {
	current := prior
	for start := 0; start < len(window); start += s.batchSize {
		end := min(start+s.batchSize, len(window))
		texts := make([]string, 0, end-start)
		for _, c := range window[start:end] {
			texts = append(texts, c.Content)
		}
		began := time.Now()
		out, err := s.summarizer.Summarize(ctx, summarizer.Input{Prior: current, Comments: texts, Title: title})
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty summary")
		}
		s.recorder.RecordSummarizerCall(time.Since(began), err)
		if err != nil {
			return "", err
		}
		current = out
	}
	return current, nil
}

// WarmDirty recomputes up to limit stale summaries that already have a prior
// text. It returns how many were refreshed.
func (s *SummaryService) WarmDirty(ctx context.Context, limit int) (int, error) {
	records, err := s.summaries.ListDirty(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list dirty summaries: %w", err)
	}
	refreshed := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		res, err := s.GetSummary(ctx, rec.NovelID)
		if err != nil {
			logutil.GetLogger(ctx).Error("warm summary failed", zap.Int64("novel_id", rec.NovelID), zap.Error(err))
			continue
		}
		if res.State == StateFresh {
			refreshed++
		}
	}
	return refreshed, nil
}
