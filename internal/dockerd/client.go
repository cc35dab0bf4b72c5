// Package dockerd checks that a local Docker daemon is reachable before the
// local backend stack is started.
package dockerd

import (
	"context"
	"errors"
	"fmt"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

const defaultAPITimeout = 5 * time.Second

// Pinger is satisfied by anything that can confirm daemon connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingAPI is the subset of *client.Client used here.
type pingAPI interface {
	Ping(ctx context.Context) (dockertypes.Ping, error)
	Close() error
}

// Client talks to the Docker Engine API.
type Client struct {
	api     pingAPI
	timeout time.Duration
}

// NewClient connects to host, or to DOCKER_HOST / the default socket when host is empty.
func NewClient(host string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &Client{
		api:     api,
		timeout: timeout,
	}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}
