package summarizer

import (
	"context"
	"strings"
)

// Stub builds a placeholder summary from its input without any I/O:
// "SUMMARY(c1; c2)", or "SUMMARY(prior; c1; c2)" when a prior exists.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Summarize(ctx context.Context, in Input) (string, error) {
	parts := make([]string, 0, len(in.Comments)+1)
	if in.Prior != "" {
		parts = append(parts, in.Prior)
	}
	parts = append(parts, in.Comments...)
	return "SUMMARY(" + strings.Join(parts, "; ") + ")", nil
}
