// Package imds reads EC2 instance metadata from the link-local metadata
// service.
package imds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the EC2 instance metadata endpoint.
const DefaultBaseURL = "http://169.254.169.254/latest/meta-data"

const requestTimeout = 2 * time.Second

// Client fetches instance metadata values.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the metadata endpoint. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// NewClient creates a metadata client with a short request timeout — the
// metadata service is link-local and answers immediately or not at all.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a single metadata key, e.g. "instance-id".
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+key, nil)
	if err != nil {
		return "", fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("query metadata service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata key %s: unexpected status %s", key, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metadata response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// InstanceID returns the local instance id.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	id, err := c.Get(ctx, "instance-id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("metadata service returned empty instance-id")
	}
	return id, nil
}
