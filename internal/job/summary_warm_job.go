package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type summaryWarmer interface {
	WarmDirty(ctx context.Context, limit int) (int, error)
}

// SummaryWarmJob refreshes stale summaries ahead of reader requests.
type SummaryWarmJob struct {
	summaries summaryWarmer
	batch     int
}

func NewSummaryWarmJob(summaries summaryWarmer, batch int) *SummaryWarmJob {
	return &SummaryWarmJob{summaries: summaries, batch: batch}
}

func (j *SummaryWarmJob) Name() string {
	return "summary_warm"
}

func (j *SummaryWarmJob) Run(ctx context.Context) error {
	if j.summaries == nil || j.batch <= 0 {
		return nil
	}
	n, err := j.summaries.WarmDirty(ctx, j.batch)
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("summaries warmed", zap.Int("count", n))
	}
	return nil
}
