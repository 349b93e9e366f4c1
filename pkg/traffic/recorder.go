package traffic

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/aretw0/apptrail/pkg/ports"
)

// Recorder is a ports.Channel that captures every exchange of the channel it
// wraps. Bodies are stored the way they travel on the wire.
type Recorder struct {
	next    ports.Channel
	baseURL string

	mu      sync.Mutex
	entries []Entry
}

var (
	_ ports.Channel = (*Recorder)(nil)
	_ ports.Opener  = (*Recorder)(nil)
)

// NewRecorder wraps next. baseURL prefixes the endpoint in recorded URLs.
func NewRecorder(next ports.Channel, baseURL string) *Recorder {
	return &Recorder{next: next, baseURL: strings.TrimRight(baseURL, "/")}
}

// Send implements ports.Channel.
func (r *Recorder) Send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	resp, err := r.next.Send(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	entry := Entry{URL: r.baseURL + "/" + endpoint}
	if entry.Request, err = wire(payload); err != nil {
		return nil, err
	}
	if entry.Response, err = wire(resp); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return resp, nil
}

// Open implements ports.Opener.
func (r *Recorder) Open(ctx context.Context) error {
	if o, ok := r.next.(ports.Opener); ok {
		return o.Open(ctx)
	}
	return nil
}

// Close implements ports.Opener.
func (r *Recorder) Close() error {
	if o, ok := r.next.(ports.Opener); ok {
		return o.Close()
	}
	return nil
}

// Entries returns the exchanges recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

func wire(body map[string]any) (map[string]any, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	err = json.Unmarshal(data, &out)
	return out, err
}
