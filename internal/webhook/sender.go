package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Event is the terminal-state payload delivered to a job's webhook URL. The
// job snapshot and per-command summary are opaque to this package; the
// engine fills them in when it builds the event.
type Event struct {
	JobID     string            `json:"job_id"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Job       any               `json:"job"`
	Summary   any               `json:"summary"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sender delivers terminal job events. Delivery is best-effort: the engine
// logs failures and moves on.
type Sender interface {
	Notify(ctx context.Context, url string, event Event) error
}

type httpSender struct {
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

func NewHTTPSender(timeout time.Duration, maxRetries int) Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &httpSender{
		client:      &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: 500 * time.Millisecond,
	}
}

func (s *httpSender) Notify(ctx context.Context, url string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		resp, err := s.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return nil
		}
		if err == nil {
			_ = resp.Body.Close()
			lastErr = errors.New(resp.Status)
		} else {
			lastErr = err
		}
		// exponential backoff with jitter
		backoff := s.baseBackoff * (1 << attempt)
		select {
		case <-time.After(backoff + time.Duration(int64(time.Millisecond)*int64(attempt*50))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
