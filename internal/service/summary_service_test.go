package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/readweb/internal/pkg/errors"
	"github.com/xxxsen/readweb/internal/summarizer"
)

func TestGetSummaryFirstUseFromRawRows(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	f.db.MustExec(f.db.Rebind(`INSERT INTO novels (id, title, ctime) VALUES (?, ?, ?)`), 42, "Moonlit", 1)
	f.db.MustExec(f.db.Rebind(`INSERT INTO comments (id, novel_id, user_id, content, ctime) VALUES (?, ?, ?, ?, ?)`), 10, 42, 7, "great", 1)

	res, err := f.summary.GetSummary(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "SUMMARY(great)", FromCache: false, State: StateFresh}, res)

	rec := f.record(t, 42)
	require.Equal(t, "SUMMARY(great)", rec.SummaryText())
	require.Equal(t, int64(10), rec.Watermark)
	require.False(t, rec.Dirty)
	require.Equal(t, "Moonlit", f.sum.lastInput().Title)
	require.Empty(t, f.sum.lastInput().Prior)
}

func TestCommentThenSummaryForNovel42(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	f.db.MustExec(f.db.Rebind(`INSERT INTO novels (id, title, ctime) VALUES (?, ?, ?), (?, ?, ?)`), 41, "Other", 1, 42, "Moonlit", 1)
	// park the comment id sequence at 9 so the next comment gets id 10
	f.db.MustExec(f.db.Rebind(`INSERT INTO comments (id, novel_id, user_id, content, ctime) VALUES (?, ?, ?, ?, ?)`), 9, 41, 1, "elsewhere", 1)
	if f.db.DriverName() == "postgres" {
		f.db.MustExec(`SELECT setval('comments_id_seq', 9)`)
	}

	c := f.comment(t, 42, "great")
	require.Equal(t, int64(10), c.ID)
	rec := f.record(t, 42)
	require.NotNil(t, rec)
	require.Nil(t, rec.Summary)
	require.Zero(t, rec.Watermark)
	require.True(t, rec.Dirty)

	res, err := f.summary.GetSummary(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "SUMMARY(great)", FromCache: false, State: StateFresh}, res)

	rec = f.record(t, 42)
	require.Equal(t, "SUMMARY(great)", rec.SummaryText())
	require.Equal(t, int64(10), rec.Watermark)
	require.False(t, rec.Dirty)
}

func TestGetSummaryCacheHitIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")

	first, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.False(t, first.FromCache)
	before := f.record(t, id)

	for i := 0; i < 3; i++ {
		res, err := f.summary.GetSummary(ctx, id)
		require.NoError(t, err)
		require.Equal(t, first.Summary, res.Summary)
		require.True(t, res.FromCache)
		require.Equal(t, StateCached, res.State)
	}
	require.Equal(t, 1, f.sum.calls())
	after := f.record(t, id)
	require.Equal(t, before.Watermark, after.Watermark)
	require.Equal(t, before.Mtime, after.Mtime)
}

func TestGetSummaryIncremental(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")
	f.comment(t, id, "b")

	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(a; b)", res.Summary)
	firstWatermark := f.record(t, id).Watermark

	c := f.comment(t, id, "c")
	require.True(t, f.record(t, id).Dirty)

	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(SUMMARY(a; b); c)", res.Summary)
	require.False(t, res.FromCache)

	in := f.sum.lastInput()
	require.Equal(t, "SUMMARY(a; b)", in.Prior)
	require.Equal(t, []string{"c"}, in.Comments)

	rec := f.record(t, id)
	require.Equal(t, c.ID, rec.Watermark)
	require.Greater(t, rec.Watermark, firstWatermark)
	require.False(t, rec.Dirty)
}

func TestGetSummaryFailureKeepsPriorSummary(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")
	_, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	good := f.record(t, id)

	f.comment(t, id, "b")
	f.sum.setErr(summarizer.ErrUnavailable)
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "SUMMARY(a)", FromCache: true, State: StateStale}, res)

	rec := f.record(t, id)
	require.Equal(t, good.SummaryText(), rec.SummaryText())
	require.Equal(t, good.Watermark, rec.Watermark)
	require.True(t, rec.Dirty)

	// a plain error is absorbed the same way
	f.sum.setErr(errors.New("connection reset"))
	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateStale, res.State)

	f.sum.setErr(nil)
	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(SUMMARY(a); b)", res.Summary)
	require.False(t, f.record(t, id).Dirty)
}

func TestGetSummaryFailureWithoutPrior(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")
	f.sum.setErr(summarizer.ErrUnavailable)

	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: UnavailableText, FromCache: false, State: StateUnavailable}, res)

	rec := f.record(t, id)
	require.False(t, rec.HasSummary())
	require.True(t, rec.Dirty)
	require.Equal(t, int64(0), rec.Watermark)
}

func TestGetSummaryFailureWithoutAnyRecord(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	f.db.MustExec(f.db.Rebind(`INSERT INTO novels (id, title, ctime) VALUES (?, ?, ?)`), 5, "raw", 1)
	f.db.MustExec(f.db.Rebind(`INSERT INTO comments (novel_id, user_id, content, ctime) VALUES (?, ?, ?, ?)`), 5, 1, "x", 1)
	f.sum.setErr(summarizer.ErrUnavailable)

	res, err := f.summary.GetSummary(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, StateUnavailable, res.State)
	rec := f.record(t, 5)
	require.NotNil(t, rec)
	require.True(t, rec.Dirty)
	require.False(t, rec.HasSummary())
}

func TestGetSummaryInsufficientData(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "empty")

	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: InsufficientDataText, FromCache: false, State: StateInsufficient}, res)
	require.Nil(t, f.record(t, id))
	require.Equal(t, 0, f.sum.calls())

	// all comments deleted before the first summary: still insufficient
	c := f.comment(t, id, "gone")
	require.NoError(t, f.comments.Delete(ctx, c.ID))
	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateInsufficient, res.State)
	rec := f.record(t, id)
	require.True(t, rec.Dirty)
	require.False(t, rec.HasSummary())
}

func TestGetSummaryDirtyWithEmptyDiffResolves(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")
	b := f.comment(t, id, "b")
	_, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.comments.Delete(ctx, b.ID))
	require.True(t, f.record(t, id).Dirty)

	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "SUMMARY(a; b)", FromCache: true, State: StateCached}, res)
	require.False(t, f.record(t, id).Dirty)
	require.Equal(t, 1, f.sum.calls())
}

func TestGetSummaryUnknownNovel(t *testing.T) {
	f := newFixture(t, nil, 0)
	_, err := f.summary.GetSummary(context.Background(), 999)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestGetSummaryCommentDuringRecomputeKeepsDirty(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	a := f.comment(t, id, "a")

	var late int64
	f.sum.setHook(func(ctx context.Context, in summarizer.Input) {
		late = f.comment(t, id, "late").ID
	})
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(a)", res.Summary)

	rec := f.record(t, id)
	require.Equal(t, a.ID, rec.Watermark)
	require.True(t, rec.Dirty, "comment written during recompute must leave the record dirty")

	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(SUMMARY(a); late)", res.Summary)
	rec = f.record(t, id)
	require.Equal(t, late, rec.Watermark)
	require.False(t, rec.Dirty)
}

func TestGetSummaryStaleWriteKeepsNewerResult(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")

	f.sum.setHook(func(ctx context.Context, in summarizer.Input) {
		_, err := f.summaries.SaveSummary(ctx, id, "newer", 1<<40, 1, 1)
		require.NoError(t, err)
	})
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "newer", FromCache: true, State: StateCached}, res)

	rec := f.record(t, id)
	require.Equal(t, "newer", rec.SummaryText())
	require.Equal(t, int64(1<<40), rec.Watermark)
}

func TestGetSummarySingleFlight(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")

	release := make(chan struct{})
	f.sum.mu.Lock()
	f.sum.release = release
	f.sum.mu.Unlock()

	const callers = 8
	results := make([]*SummaryResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.summary.GetSummary(ctx, id)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, 1, f.sum.calls())
	for _, res := range results {
		require.Equal(t, "SUMMARY(a)", res.Summary)
	}
}

func TestGetSummaryFlightSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t, nil, 0)
	id := f.novel(t, "n")
	f.comment(t, id, "a")

	ctx, cancel := context.WithCancel(context.Background())
	f.sum.setHook(func(hookCtx context.Context, in summarizer.Input) {
		cancel()
		require.NoError(t, hookCtx.Err())
	})
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateFresh, res.State)
	require.False(t, f.record(t, id).Dirty)
}

func TestGetSummaryBatches(t *testing.T) {
	f := newFixture(t, nil, 2)
	ctx := context.Background()
	id := f.novel(t, "n")
	for _, c := range []string{"c1", "c2", "c3", "c4", "c5"} {
		f.comment(t, id, c)
	}
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SUMMARY(SUMMARY(SUMMARY(c1; c2); c3; c4); c5)", res.Summary)
	require.Equal(t, 3, f.sum.calls())
}

func TestGetSummaryBatchFailureIsAllOrNothing(t *testing.T) {
	f := newFixture(t, nil, 1)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "c1")
	f.comment(t, id, "c2")

	// the first batch succeeds, the second fails
	failing := &failOnNth{next: f.sum, n: 2}
	f.summary.summarizer = failing

	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateUnavailable, res.State)
	rec := f.record(t, id)
	require.False(t, rec.HasSummary())
	require.Equal(t, int64(0), rec.Watermark)
	require.Equal(t, 2, failing.seen)
}

type failOnNth struct {
	next summarizer.Summarizer
	n    int
	seen int
}

func (f *failOnNth) Summarize(ctx context.Context, in summarizer.Input) (string, error) {
	f.seen++
	if f.seen == f.n {
		return "", summarizer.ErrUnavailable
	}
	return f.next.Summarize(ctx, in)
}

func TestGetSummaryLeaseBusy(t *testing.T) {
	f := newFixture(t, busyLocker{}, 0)
	ctx := context.Background()
	id := f.novel(t, "n")
	f.comment(t, id, "a")

	// nobody has produced a summary yet, so the caller proceeds
	res, err := f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateFresh, res.State)

	f.comment(t, id, "b")
	res, err = f.summary.GetSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, &SummaryResult{Summary: "SUMMARY(a)", FromCache: true, State: StateStale}, res)
	require.Equal(t, 1, f.sum.calls())
	require.True(t, f.record(t, id).Dirty)
}

func TestWarmDirty(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	first := f.novel(t, "one")
	second := f.novel(t, "two")
	never := f.novel(t, "never")
	f.comment(t, first, "a")
	f.comment(t, second, "b")
	f.comment(t, never, "c")
	_, err := f.summary.GetSummary(ctx, first)
	require.NoError(t, err)
	_, err = f.summary.GetSummary(ctx, second)
	require.NoError(t, err)

	f.comment(t, first, "a2")
	f.comment(t, second, "b2")

	n, err := f.summary.WarmDirty(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.False(t, f.record(t, first).Dirty)
	require.False(t, f.record(t, second).Dirty)
	require.True(t, f.record(t, never).Dirty)
}
