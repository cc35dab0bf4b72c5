package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/gcloud"
)

const httpErrorBodyLimit = 512

// Probe checks a single target. A nil error means the target is healthy.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// HTTPProbe issues a GET and treats any 2xx as healthy.
type HTTPProbe struct {
	name    string
	url     string
	timeout time.Duration
	header  http.Header
	client  *retryablehttp.Client
}

// HTTPOption customizes an HTTPProbe.
type HTTPOption func(*HTTPProbe)

// WithTimeout bounds each check. Zero disables the bound.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(p *HTTPProbe) {
		p.timeout = timeout
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(p *HTTPProbe) {
		p.header.Set(key, value)
	}
}

// WithHTTPClient overrides the underlying client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProbe) {
		p.client.HTTPClient = client
	}
}

// NewHTTPProbe creates a probe for url.
func NewHTTPProbe(name, url string, opts ...HTTPOption) *HTTPProbe {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil

	p := &HTTPProbe{
		name:   name,
		url:    url,
		header: http.Header{},
		client: client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDataAPIProbe checks the backend auth health endpoint with the anonymous key.
func NewDataAPIProbe(baseURL, anonKey string, opts ...HTTPOption) *HTTPProbe {
	opts = append([]HTTPOption{WithHeader("apikey", anonKey)}, opts...)
	return NewHTTPProbe(TargetDataAPI, strings.TrimRight(baseURL, "/")+"/auth/v1/health", opts...)
}

// Name implements Probe.
func (p *HTTPProbe) Name() string { return p.name }

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range p.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s: %w", p.timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
		if len(body) > 0 {
			return fmt.Errorf("returned status %d: %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("returned status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, httpErrorBodyLimit))
	return nil
}

// CommandProbe runs a CLI command and treats a zero exit code as healthy.
type CommandProbe struct {
	name string
	exec command.Executor
	cmd  command.Command
}

// NewCommandProbe wraps an arbitrary command.
func NewCommandProbe(name string, exec command.Executor, cmd command.Command) *CommandProbe {
	return &CommandProbe{name: name, exec: exec, cmd: cmd}
}

// NewBucketProbe describes a Cloud Storage bucket through gcloud.
func NewBucketProbe(exec command.Executor, projectID, bucket string) *CommandProbe {
	cli := gcloud.CLI{Project: projectID}
	return NewCommandProbe(TargetStorage, exec,
		cli.Cmd("storage", "buckets", "describe", "gs://"+bucket, "--format=value(name)"))
}

// NewSecretManagerProbe lists at most one secret to confirm Secret Manager is reachable.
func NewSecretManagerProbe(exec command.Executor, projectID string) *CommandProbe {
	cli := gcloud.CLI{Project: projectID}
	return NewCommandProbe(TargetSecretManager, exec,
		cli.Cmd("secrets", "list", "--limit=1", "--format=value(name)"))
}

// Name implements Probe.
func (p *CommandProbe) Name() string { return p.name }

// Check implements Probe.
func (p *CommandProbe) Check(ctx context.Context) error {
	if _, err := p.exec.Run(ctx, p.cmd); err != nil {
		return errors.New(gcloud.Detail(err))
	}
	return nil
}

// FuncProbe adapts a function to Probe.
type FuncProbe struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncProbe returns a Probe backed by fn.
func NewFuncProbe(name string, fn func(ctx context.Context) error) *FuncProbe {
	return &FuncProbe{name: name, fn: fn}
}

// Name implements Probe.
func (p *FuncProbe) Name() string { return p.name }

// Check implements Probe.
func (p *FuncProbe) Check(ctx context.Context) error { return p.fn(ctx) }
