package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/ports"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// Channel sends session requests to the remote application as JSON over HTTP.
// Each endpoint is posted to <baseURL>/<endpoint>.
type Channel struct {
	baseURL string
	auth    Authenticator
	logger  *slog.Logger

	mu     sync.Mutex
	client *http.Client
}

var (
	_ ports.Channel = (*Channel)(nil)
	_ ports.Opener  = (*Channel)(nil)
)

// Option configures the Channel.
type Option func(*Channel)

// WithAuth configures how requests are authenticated.
func WithAuth(auth Authenticator) Option {
	return func(c *Channel) {
		c.auth = auth
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Channel) {
		c.client = client
	}
}

// WithLogger configures debug logging of requests.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// NewChannel creates a Channel for the application served at baseURL.
func NewChannel(baseURL string, opts ...Option) *Channel {
	c := &Channel{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.NewNop(),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a fresh cookie session for the run.
func (c *Channel) Open(context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	client := *c.client
	client.Jar = jar
	c.client = &client
	return nil
}

// Close drops idle connections.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.CloseIdleConnections()
	return nil
}

// Send implements ports.Channel.
func (c *Channel) Send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.Authenticate(req, body); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("HTTP exchange", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode >= http.StatusBadRequest {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(snippet))
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
