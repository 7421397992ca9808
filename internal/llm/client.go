// Package llm is a thin client for an OpenAI-compatible chat-completions
// endpoint, used only in streaming mode by the financial analysis pipeline.
package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// UpstreamError is returned for any non-2xx response from the provider. The
// caller surfaces it as a terminal error event; there is no retry.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds the whole streaming call. The upstream has no heartbeat,
	// so without a deadline a silent stream hangs the inbound request forever.
	Timeout time.Duration
}

type Client struct {
	http        *resty.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        httpClient,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Stream         bool           `json:"stream"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// StreamChunk is one incremental chat-completion chunk from the upstream
// stream. Absent fields unmarshal to their zero values, so delta extraction
// never panics on partial shapes.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Delta returns the incremental content fragment, or "" when any segment of
// the choices[0].delta.content path is absent.
func (c StreamChunk) Delta() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// Stream issues one streaming chat-completion request and returns the raw
// response body for incremental consumption. The caller must close it. A
// non-2xx response is drained into an *UpstreamError; single attempt only.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	body := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:         true,
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat completion request: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		defer cancel()
		defer raw.Close()
		errBody, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: strings.TrimSpace(string(errBody))}
	}

	return &cancelReadCloser{ReadCloser: raw, cancel: cancel}, nil
}

// cancelReadCloser ties the request deadline to the body lifetime.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
