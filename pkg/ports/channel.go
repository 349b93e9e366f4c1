package ports

import "context"

// Channel is the transport to the remote application.
// A response is the decoded JSON object returned by the endpoint.
type Channel interface {
	Send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error)
}

// Opener is implemented by channels that must be acquired before a run and
// released after it. Close is called on every exit path once Open succeeded.
type Opener interface {
	Open(ctx context.Context) error
	Close() error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error)

func (f ChannelFunc) Send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	return f(ctx, endpoint, payload)
}
