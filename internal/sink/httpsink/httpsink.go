// Package httpsink delivers emitted actions to a downstream
// matching/gateway system over HTTP, one webhook POST per action. It
// wraps a resty client with retry-on-5xx the same way the teacher's
// exchange client does for its CLOB REST calls.
package httpsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"riskengine/pkg/types"
)

// Sink posts a JSON-encoded action to a configured webhook URL.
type Sink struct {
	http   *resty.Client
	url    string
	logger *slog.Logger
}

// New creates a webhook sink. timeout bounds each individual POST;
// retryCount is how many times resty retries a 5xx or network error
// before giving up.
func New(url string, timeout time.Duration, retryCount int, logger *slog.Logger) *Sink {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Sink{http: httpClient, url: url, logger: logger}
}

// payload is the wire shape an action is delivered as.
type payload struct {
	Kind    types.ActionKind `json:"kind"`
	Subject string           `json:"subject"`
	Reasons []string         `json:"reasons,omitempty"`
}

// Deliver posts action to the webhook. It returns an error only for
// delivery failures (network error, or a status other than 200 or 202
// after retries) — the
// caller is responsible for counting these against the sink-failure
// diagnostic.
func (s *Sink) Deliver(ctx context.Context, action types.Action, reasons []string) error {
	body := payload{Kind: action.Kind, Subject: action.Subject, Reasons: reasons}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpsink: marshal action: %w", err)
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(encoded).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("httpsink: post action: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("httpsink: post action: status %d: %s", resp.StatusCode(), resp.String())
	}

	s.logger.Debug("action delivered", "kind", action.Kind, "subject", action.Subject)
	return nil
}
