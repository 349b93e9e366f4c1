package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/screen"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// Config identifies the remote application and the user a session acts as.
type Config struct {
	Domain    string `yaml:"domain" json:"domain"`
	AppID     string `yaml:"app_id" json:"app_id"`
	Username  string `yaml:"username" json:"username"`
	RestoreAs string `yaml:"restore_as" json:"restore_as,omitempty"`
	// BuildID is a cached application build. When set it is sent as app_id.
	BuildID string `yaml:"build_id" json:"build_id,omitempty"`
	Locale  string `yaml:"locale" json:"locale,omitempty"`
}

const (
	defaultLocale = "en"
	casesPerPage  = 10
)

// Session is the live state of one remote interaction.
// It is not safe for concurrent use; fork it with Clone instead.
type Session struct {
	channel ports.Channel
	cfg     Config

	screen    map[string]any
	queryData map[string]any
	log       []string
}

var _ workflow.Session = (*Session)(nil)

// New creates a session that talks through ch.
func New(ch ports.Channel, cfg Config) *Session {
	if cfg.Locale == "" {
		cfg.Locale = defaultLocale
	}
	return &Session{
		channel:   ch,
		cfg:       cfg,
		queryData: map[string]any{},
	}
}

// Channel returns the transport shared by this session and its clones.
func (s *Session) Channel() ports.Channel { return s.channel }

// Config returns the session identity.
func (s *Session) Config() Config { return s.cfg }

// LockKey is the key runs of this session are serialized on.
func (s *Session) LockKey() string {
	user := s.cfg.RestoreAs
	if user == "" {
		user = s.cfg.Username
	}
	return s.cfg.Domain + ":" + user
}

// Screen returns the latest response. Callers must not modify it.
func (s *Session) Screen() map[string]any { return s.screen }

// Kind classifies the latest response.
func (s *Session) Kind() (screen.Kind, error) {
	return screen.Classify(s.screen)
}

// Log returns the execution log lines recorded so far.
func (s *Session) Log() []string {
	return append([]string(nil), s.log...)
}

// Logf appends a line to the execution log.
func (s *Session) Logf(format string, args ...any) {
	s.log = append(s.log, fmt.Sprintf(format, args...))
}

// StartData returns the body of the request that opens the application.
func (s *Session) StartData() map[string]any {
	data := s.base()
	data["app_id"] = s.appID()
	data["locale"] = s.cfg.Locale
	data["preview"] = false
	return data
}

// NavigationData returns the base body of a menu navigation request: the
// current selections and the accumulated query data.
func (s *Session) NavigationData() map[string]any {
	data := s.StartData()
	data["selections"] = screen.Selections(s.screen)
	data["query_data"] = deepCopy(s.queryData)
	data["cases_per_page"] = casesPerPage
	data["offset"] = 0
	data["search_text"] = nil
	return data
}

// FormData returns the base body of a form request.
func (s *Session) FormData() map[string]any {
	return s.base()
}

// SyncData returns the body of a data sync request.
func (s *Session) SyncData() map[string]any {
	data := s.base()
	data["app_id"] = s.appID()
	return data
}

func (s *Session) base() map[string]any {
	data := map[string]any{
		"domain":           s.cfg.Domain,
		"username":         s.cfg.Username,
		"tz_offset_millis": 0,
		"tz_from_browser":  "UTC",
	}
	if s.cfg.RestoreAs != "" {
		data["restore_as"] = s.cfg.RestoreAs
	}
	return data
}

func (s *Session) appID() string {
	if s.cfg.BuildID != "" {
		return s.cfg.BuildID
	}
	return s.cfg.AppID
}

// Send posts a request without changing the session.
// Explicit failures reported by the remote service become a RemoteExecutionError.
func (s *Session) Send(ctx context.Context, endpoint string, data map[string]any) (map[string]any, error) {
	resp, err := s.channel.Send(ctx, endpoint, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	if msg, failed := remoteFailure(resp); failed {
		return nil, &domain.RemoteExecutionError{Endpoint: endpoint, Message: msg}
	}
	return resp, nil
}

// Execute sends the request and makes its response the current screen.
func (s *Session) Execute(ctx context.Context, req workflow.Request) (map[string]any, error) {
	resp, err := s.Send(ctx, req.Endpoint, req.Data)
	if err != nil {
		return nil, err
	}
	s.Apply(req, resp)
	return resp, nil
}

// Apply records a completed exchange: the response replaces the screen and
// the query data sent with the request becomes the accumulated query data.
func (s *Session) Apply(req workflow.Request, resp map[string]any) {
	s.screen = resp
	if qd, ok := req.Data["query_data"].(map[string]any); ok {
		s.queryData = deepCopy(qd)
	}
}

// Clone returns an independent copy. The channel is shared.
func (s *Session) Clone() *Session {
	return &Session{
		channel:   s.channel,
		cfg:       s.cfg,
		screen:    deepCopy(s.screen),
		queryData: deepCopy(s.queryData),
		log:       append([]string(nil), s.log...),
	}
}

func remoteFailure(resp map[string]any) (string, bool) {
	if exc, ok := resp["exception"]; ok && exc != nil && exc != "" {
		return fmt.Sprint(exc), true
	}
	if status, _ := resp["status"].(string); strings.EqualFold(status, "error") {
		if msg, ok := resp["error"]; ok && msg != nil {
			return fmt.Sprint(msg), true
		}
		return "status error", true
	}
	return "", false
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
