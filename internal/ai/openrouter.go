package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openrouterDefaultBase    = "https://openrouter.ai/api/v1"
	openrouterDefaultTimeout = 60
	openrouterErrorBodyLimit = 2048
)

type openrouterConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	HTTPReferer    string `json:"http_referer"`
	XTitle         string `json:"x_title"`
	MaxTokens      int    `json:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c *openrouterConfig) normalize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = openrouterDefaultBase
	}
	c.HTTPReferer = strings.TrimSpace(c.HTTPReferer)
	c.XTitle = strings.TrimSpace(c.XTitle)
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = openrouterDefaultTimeout
	}
}

type openrouterRequest struct {
	Model     string          `json:"model"`
	Messages  []openrouterMsg `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Stream    bool            `json:"stream"`
}

type openrouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openrouterReply struct {
	Choices []struct {
		Message openrouterMsg `json:"message"`
	} `json:"choices"`
	Error *openrouterErrorBody `json:"error"`
}

type openrouterErrorBody struct {
	Message string `json:"message"`
}

// openrouterProvider talks to the OpenAI-compatible chat endpoint directly so
// it can surface the error object openrouter embeds in 200 responses.
type openrouterProvider struct {
	cfg    openrouterConfig
	client *http.Client
}

func (p *openrouterProvider) Name() string {
	return "openrouter"
}

func (p *openrouterProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", ErrUnavailable
	}
	raw, err := p.post(ctx, openrouterRequest{
		Model:     model,
		Messages:  []openrouterMsg{{Role: "user", Content: prompt}},
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	var reply openrouterReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode openrouter reply: %w", err)
	}
	switch {
	case reply.Error != nil:
		return "", fmt.Errorf("openrouter upstream error: %s", reply.Error.Message)
	case len(reply.Choices) == 0:
		return "", fmt.Errorf("openrouter reply has no choices")
	}
	return strings.TrimSpace(reply.Choices[0].Message.Content), nil
}

func (p *openrouterProvider) post(ctx context.Context, body openrouterRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	for name, value := range map[string]string{"HTTP-Referer": p.cfg.HTTPReferer, "X-Title": p.cfg.XTitle} {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, openrouterErrorBodyLimit))
		return nil, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return io.ReadAll(resp.Body)
}

func newOpenRouterProvider(args interface{}) (IProvider, error) {
	var cfg openrouterConfig
	if err := decodeConfig(args, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &openrouterProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

func init() {
	Register("openrouter", newOpenRouterProvider)
}
