package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"finanzas/internal/core"
)

// Forwarder mirrors feedback submissions to an external webhook. All errors
// are returned to the caller, which treats them as non-fatal.
type Forwarder struct {
	client *resty.Client
	url    string
}

func NewForwarder(url string) *Forwarder {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Forwarder{client: client, url: url}
}

// Enabled reports whether a webhook URL is configured.
func (f *Forwarder) Enabled() bool {
	return f.url != ""
}

type payload struct {
	Rating    int    `json:"rating"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (f *Forwarder) Forward(ctx context.Context, fb core.Feedback) error {
	if !f.Enabled() {
		return nil
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(payload{
			Rating:    fb.Rating,
			Message:   fb.Message,
			URL:       fb.URL,
			UserAgent: fb.UserAgent,
			CreatedAt: fb.CreatedAt.Format(time.RFC3339),
		}).
		Post(f.url)
	if err != nil {
		return fmt.Errorf("post feedback webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("feedback webhook returned %d", resp.StatusCode())
	}
	return nil
}
