package summarizer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xxxsen/readweb/internal/ai"
)

type LLMConfig struct {
	Timeout         time.Duration
	MaxCommentChars int
}

// LLM summarizes through a text generator.
type LLM struct {
	gen    ai.IGenerator
	cfg    LLMConfig
	policy *bluemonday.Policy
}

func NewLLM(gen ai.IGenerator, cfg LLMConfig) *LLM {
	return &LLM{
		gen:    gen,
		cfg:    cfg,
		policy: bluemonday.StrictPolicy(),
	}
}

func (l *LLM) Summarize(ctx context.Context, in Input) (string, error) {
	if l.gen == nil {
		return "", ErrUnavailable
	}
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}
	resp, err := l.gen.Generate(ctx, l.buildPrompt(in))
	if err != nil {
		return "", unavailable(err)
	}
	out := strings.TrimSpace(html.UnescapeString(l.policy.Sanitize(resp)))
	if out == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return out, nil
}

func (l *LLM) buildPrompt(in Input) string {
	var comments strings.Builder
	n := 0
	for _, c := range in.Comments {
		clean := truncateRunes(plainText(c), l.cfg.MaxCommentChars)
		if clean == "" {
			continue
		}
		n++
		fmt.Fprintf(&comments, "%d. %s\n", n, clean)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "untitled"
	}
	if in.Prior != "" {
		return fmt.Sprintf(`You maintain a running summary of reader comments on the web novel %q.
Update the existing summary so it also reflects the new comments.
- Keep points from the existing summary unless the new comments contradict them.
- Use the same language as the comments.
- Write one concise paragraph (2-4 sentences).
- Output ONLY the summary text.

EXISTING SUMMARY:
%s

NEW COMMENTS:
%s`, title, in.Prior, comments.String())
	}
	return fmt.Sprintf(`You summarize reader comments on the web novel %q.
Describe what readers think overall: praise, complaints and recurring themes.
- Use the same language as the comments.
- Write one concise paragraph (2-4 sentences).
- Output ONLY the summary text.

COMMENTS:
%s`, title, comments.String())
}
