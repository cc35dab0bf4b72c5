package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
)

const responseDetailLimit = 1024

// deliveryPolicy bounds a single POST and the retries around it. Alerts are
// sent as soon as they are raised; only failed attempts wait.
type deliveryPolicy struct {
	attemptTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	giveUpAfter    time.Duration
}

var defaultDelivery = deliveryPolicy{
	attemptTimeout: 10 * time.Second,
	initialBackoff: 1 * time.Second,
	maxBackoff:     10 * time.Second,
	giveUpAfter:    30 * time.Second,
}

// alertPoster delivers rendered alert payloads to one HTTP endpoint.
type alertPoster struct {
	sink        string
	url         string
	contentType string
	client      *retryablehttp.Client
	policy      deliveryPolicy
}

func newAlertPoster(sink, url string, policy deliveryPolicy) *alertPoster {
	client := retryablehttp.NewClient()
	// Retries are driven by deliver so Retry-After and the give-up window
	// apply uniformly.
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: policy.attemptTimeout}

	return &alertPoster{
		sink:        sink,
		url:         url,
		contentType: "application/json",
		client:      client,
		policy:      policy,
	}
}

func (p *alertPoster) schedule(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.policy.initialBackoff
	b.MaxInterval = p.policy.maxBackoff
	b.MaxElapsedTime = p.policy.giveUpAfter
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// deliver posts payload. Transport failures, 5xx and 429 are retried until
// the policy gives up; a 429 waits at least as long as its Retry-After.
func (p *alertPoster) deliver(ctx context.Context, payload []byte) error {
	schedule := p.schedule(ctx)
	for attempt := 1; ; attempt++ {
		err := p.attempt(ctx, payload)
		if err == nil {
			return nil
		}

		var failed *deliveryError
		if !errors.As(err, &failed) || !failed.retryable {
			return err
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%s: giving up after %d attempts: %w", p.sink, attempt, err)
		}
		if failed.retryAfter > wait {
			wait = failed.retryAfter
		}
		if !pause(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (p *alertPoster) attempt(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.policy.attemptTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.sink, err)
	}
	req.Header.Set("Content-Type", p.contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return &deliveryError{sink: p.sink, reason: "request failed", retryable: true, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseDetailLimit))
	failed := &deliveryError{
		sink:   p.sink,
		reason: resp.Status,
		detail: strings.TrimSpace(string(body)),
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		failed.retryable = true
		failed.retryAfter, _ = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= http.StatusInternalServerError:
		failed.retryable = true
	}
	return failed
}

// deliveryError is a failed attempt. retryAfter is set only when the
// endpoint asked for a specific delay.
type deliveryError struct {
	sink       string
	reason     string
	detail     string
	retryable  bool
	retryAfter time.Duration
	err        error
}

func (e *deliveryError) Error() string {
	msg := fmt.Sprintf("%s delivery failed: %s", e.sink, e.reason)
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	if e.detail != "" {
		msg += " (" + e.detail + ")"
	}
	return msg
}

func (e *deliveryError) Unwrap() error {
	return e.err
}

func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		wait := time.Until(when)
		if wait <= 0 {
			return 0, false
		}
		return wait, true
	}
	return 0, false
}

func pause(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
