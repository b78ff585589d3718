// Package summarizer turns reader comments into a short summary. Every
// implementation reports upstream trouble as ErrUnavailable and never returns
// failure text as if it were a summary.
package summarizer

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnavailable = errors.New("summarizer unavailable")

type Input struct {
	// Prior is the summary of earlier comments, empty when there is none.
	Prior string
	// Comments are the new comment texts, oldest first.
	Comments []string
	Title    string
}

type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
