package testutils

import (
	"context"
	"sync"
)

// Call is one request recorded by a Channel.
type Call struct {
	Endpoint string
	Payload  map[string]any
}

// Channel is a scripted ports.Channel that records every request.
// Responses come from Reply, or from Replies in order when Reply is nil.
type Channel struct {
	Reply   func(endpoint string, payload map[string]any) (map[string]any, error)
	Replies []map[string]any

	mu     sync.Mutex
	calls  []Call
	opened int
	closed int
}

// Send implements ports.Channel.
func (c *Channel) Send(_ context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Endpoint: endpoint, Payload: payload})
	reply := c.Reply
	var next map[string]any
	if reply == nil && len(c.Replies) > 0 {
		next = c.Replies[0]
		c.Replies = c.Replies[1:]
	}
	c.mu.Unlock()

	if reply != nil {
		return reply(endpoint, payload)
	}
	if next == nil {
		next = map[string]any{}
	}
	return next, nil
}

// Open implements ports.Opener.
func (c *Channel) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	return nil
}

// Close implements ports.Opener.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Calls returns the recorded requests.
func (c *Channel) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Endpoints returns the endpoint of every recorded request.
func (c *Channel) Endpoints() []string {
	var out []string
	for _, call := range c.Calls() {
		out = append(out, call.Endpoint)
	}
	return out
}

// Lifecycle returns how many times Open and Close were called.
func (c *Channel) Lifecycle() (opened, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}
