package model

// SummaryRecord is the cached comment summary of one novel.
//
// Summary is nil until a summarization has succeeded. Watermark is the highest
// comment id folded into Summary (0 when none). Dirty means Summary may be
// behind the comment store. Generation is bumped by every invalidation so a
// recompute can tell whether comments changed while it was running.
type SummaryRecord struct {
	NovelID    int64   `json:"novel_id"`
	Summary    *string `json:"summary"`
	Watermark  int64   `json:"watermark"`
	Dirty      bool    `json:"dirty"`
	Generation int64   `json:"generation"`
	Ctime      int64   `json:"ctime"`
	Mtime      int64   `json:"mtime"`
}

func (r *SummaryRecord) HasSummary() bool {
	return r != nil && r.Summary != nil
}

func (r *SummaryRecord) SummaryText() string {
	if r == nil || r.Summary == nil {
		return ""
	}
	return *r.Summary
}
