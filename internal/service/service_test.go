package service

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/readweb/internal/lease"
	"github.com/xxxsen/readweb/internal/model"
	"github.com/xxxsen/readweb/internal/repo"
	"github.com/xxxsen/readweb/internal/summarizer"
	"github.com/xxxsen/readweb/internal/testutil"
)

// scriptedSummarizer behaves like the stub unless told to fail, and lets a
// test run code while a summarization is in progress.
type scriptedSummarizer struct {
	mu      sync.Mutex
	stub    *summarizer.Stub
	err     error
	inputs  []summarizer.Input
	hook    func(ctx context.Context, in summarizer.Input)
	release chan struct{}
}

func newScripted() *scriptedSummarizer {
	return &scriptedSummarizer{stub: summarizer.NewStub()}
}

func (s *scriptedSummarizer) Summarize(ctx context.Context, in summarizer.Input) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	err := s.err
	hook := s.hook
	s.hook = nil
	release := s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	if hook != nil {
		hook(ctx, in)
	}
	if err != nil {
		return "", err
	}
	return s.stub.Summarize(ctx, in)
}

func (s *scriptedSummarizer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *scriptedSummarizer) setHook(hook func(ctx context.Context, in summarizer.Input)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *scriptedSummarizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *scriptedSummarizer) lastInput() summarizer.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[len(s.inputs)-1]
}

type busyLocker struct{}

func (busyLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	return func() {}, false, nil
}

type fixture struct {
	db        *sqlx.DB
	summaries *repo.SummaryRepo
	novelSvc  *NovelService
	comments  *CommentService
	summary   *SummaryService
	sum       *scriptedSummarizer
}

func newFixture(t *testing.T, locker lease.Locker, batchSize int) *fixture {
	t.Helper()
	conn, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)
	novels := repo.NewNovelRepo(conn)
	comments := repo.NewCommentRepo(conn)
	summaries := repo.NewSummaryRepo(conn)
	sum := newScripted()
	return &fixture{
		db:        conn,
		summaries: summaries,
		novelSvc:  NewNovelService(novels),
		comments:  NewCommentService(conn, novels, comments, NewInvalidator(summaries)),
		summary:   NewSummaryService(novels, comments, summaries, sum, locker, nil, batchSize),
		sum:       sum,
	}
}

func (f *fixture) novel(t *testing.T, title string) int64 {
	t.Helper()
	novel, err := f.novelSvc.Create(context.Background(), title)
	require.NoError(t, err)
	return novel.ID
}

func (f *fixture) comment(t *testing.T, novelID int64, content string) *model.Comment {
	t.Helper()
	c, err := f.comments.Create(context.Background(), novelID, 1, content)
	require.NoError(t, err)
	return c
}

func (f *fixture) record(t *testing.T, novelID int64) *model.SummaryRecord {
	t.Helper()
	rec, err := f.summaries.Get(context.Background(), novelID)
	require.NoError(t, err)
	return rec
}
