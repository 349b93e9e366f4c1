package traffic

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/screen"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// actionPrefix marks selections that trigger a case list action instead of
// selecting a case.
const actionPrefix = "action "

// recognized lists the endpoints a capture is filtered to.
var recognized = map[string]bool{
	workflow.EndpointNavigateStart: true,
	workflow.EndpointNavigate:      true,
	workflow.EndpointAnswer:        true,
	workflow.EndpointSubmit:        true,
	workflow.EndpointEvaluateXpath: true,
	workflow.EndpointEvaluateMenu:  true,
}

// Entry is one captured exchange.
type Entry struct {
	URL      string         `json:"url"`
	Request  map[string]any `json:"request"`
	Response map[string]any `json:"response"`
}

// Endpoint returns the endpoint name the entry was sent to.
func (e Entry) Endpoint() string {
	u := strings.TrimRight(e.URL, "/")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return u[strings.LastIndex(u, "/")+1:]
}

// Result is a reconstructed workflow and the application it ran against.
type Result struct {
	Workflow workflow.Workflow `json:"workflow"`
	Domain   string            `json:"domain"`
	AppID    string            `json:"app_id"`
	BaseURL  string            `json:"base_url"`
}

// Option configures Reconstruct.
type Option func(*reconstructor)

// WithLogger configures debug logging of every inferred step.
func WithLogger(logger *slog.Logger) Option {
	return func(r *reconstructor) {
		r.logger = logger
	}
}

type reconstructor struct {
	logger *slog.Logger
	result Result

	screen map[string]any
	kind   screen.Kind
	steps  []workflow.Entry
	form   []workflow.Entry
}

// Reconstruct infers the workflow that produced entries. Entries before the
// first session start and entries sent to unknown endpoints are ignored.
func Reconstruct(entries []Entry, opts ...Option) (*Result, error) {
	r := &reconstructor{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	started := false
	for i, e := range entries {
		endpoint := e.Endpoint()
		if !recognized[endpoint] {
			continue
		}
		if !started {
			if endpoint != workflow.EndpointNavigateStart {
				continue
			}
			started = true
			r.result.BaseURL = strings.TrimSuffix(strings.TrimRight(e.URL, "/"), "/"+endpoint)
		}
		if err := r.checkIdentity(e.Request); err != nil {
			return nil, &domain.ReconstructionError{Index: i, Reason: err.Error()}
		}
		if err := r.apply(endpoint, e); err != nil {
			return nil, &domain.ReconstructionError{Index: i, Reason: err.Error()}
		}
	}
	if !started {
		return nil, &domain.ReconstructionError{Index: len(entries), Reason: "no session start found"}
	}
	r.flushForm()
	r.result.Workflow = workflow.New(r.steps...)
	return &r.result, nil
}

func (r *reconstructor) checkIdentity(req map[string]any) error {
	check := func(field string, have *string) error {
		v, _ := req[field].(string)
		switch {
		case v == "":
			return nil
		case *have == "":
			*have = v
			return nil
		case *have != v:
			return fmt.Errorf("%s changed from %q to %q", field, *have, v)
		}
		return nil
	}
	if err := check("domain", &r.result.Domain); err != nil {
		return err
	}
	return check("app_id", &r.result.AppID)
}

func (r *reconstructor) apply(endpoint string, e Entry) error {
	switch endpoint {
	case workflow.EndpointEvaluateXpath, workflow.EndpointEvaluateMenu:
		return nil
	case workflow.EndpointNavigateStart:
		r.flushForm()
		return r.track(e.Response)
	}

	kind, err := screen.ClassifyCapture(e.Response)
	if err != nil {
		return err
	}
	if kind == screen.KindDetail {
		r.logger.Debug("Skipping detail screen")
		return nil
	}

	var step workflow.Step
	switch endpoint {
	case workflow.EndpointNavigate:
		r.flushForm()
		step, err = r.navigation(e.Request)
	case workflow.EndpointAnswer:
		step, err = r.answer(e.Request)
	case workflow.EndpointSubmit:
		step, err = r.submit()
	}
	if err != nil {
		return err
	}
	r.logger.Debug("Inferred step", "type", step.Type(), "from", r.kind, "to", kind)
	if workflow.IsFormScoped(step) {
		r.form = append(r.form, step)
	} else {
		r.steps = append(r.steps, step)
	}
	return r.track(e.Response)
}

func (r *reconstructor) track(resp map[string]any) error {
	kind, err := screen.ClassifyCapture(resp)
	if err != nil {
		return err
	}
	r.screen, r.kind = resp, kind
	return nil
}

func (r *reconstructor) flushForm() {
	if len(r.form) == 0 {
		return
	}
	r.steps = append(r.steps, workflow.FormStep{Entries: r.form})
	r.form = nil
}

func (r *reconstructor) navigation(req map[string]any) (workflow.Step, error) {
	prev := screen.Selections(r.screen)
	next := stringList(req["selections"])

	if extends(prev, next) {
		last := next[len(next)-1]
		switch r.kind {
		case screen.KindMenu:
			return r.command(last), nil
		case screen.KindCaseList, screen.KindSplitSearch, screen.KindSearch:
			switch {
			case strings.HasPrefix(last, actionPrefix):
				return workflow.CommandIDStep{Value: last}, nil
			case last == workflow.SelectedValuesSentinel:
				return workflow.MultipleEntitySelectStep{Values: stringList(req["selectedValues"])}, nil
			default:
				return workflow.EntitySelectStep{Value: last}, nil
			}
		}
		return nil, fmt.Errorf("unexpected selection %q on %s screen", last, r.kind)
	}

	if r.kind == screen.KindSearch || r.kind == screen.KindSplitSearch {
		return r.query(req)
	}
	return nil, fmt.Errorf("unexpected navigation on %s screen", r.kind)
}

// command resolves a menu selection back to the command's display text.
func (r *reconstructor) command(index string) workflow.Step {
	if _, err := strconv.Atoi(index); err == nil {
		cmds, _ := screen.Commands(screen.Effective(r.screen))
		for _, c := range cmds {
			if c.Index == index {
				return workflow.CommandStep{Value: c.DisplayText}
			}
		}
	}
	return workflow.CommandIDStep{Value: index}
}

func (r *reconstructor) query(req map[string]any) (workflow.Step, error) {
	key := screen.QueryKey(r.screen)
	queryData, _ := req["query_data"].(map[string]any)
	q, ok := queryData[key].(map[string]any)
	if key == "" || !ok {
		return nil, fmt.Errorf("search request without query data for %q", key)
	}
	raw, _ := q["inputs"].(map[string]any)
	switch {
	case q["inputs"] == nil:
		return workflow.ClearQueryStep{}, nil
	case q["execute"] == true:
		return workflow.QueryStep{Inputs: inputs(raw, screen.QueryFields(r.screen))}, nil
	default:
		return workflow.QueryInputValidationStep{Inputs: inputs(raw, screen.QueryFields(r.screen))}, nil
	}
}

func (r *reconstructor) answer(req map[string]any) (workflow.Step, error) {
	if r.kind != screen.KindForm {
		return nil, fmt.Errorf("answer on %s screen", r.kind)
	}
	tree, err := screen.Tree(r.screen)
	if err != nil {
		return nil, err
	}
	ix := fmt.Sprint(req["ix"])
	for _, n := range screen.Flatten(tree) {
		if n.Ix == ix {
			return workflow.AnswerQuestionIDStep{QuestionID: n.QuestionID, Value: screen.AnswerText(req["answer"])}, nil
		}
	}
	return nil, fmt.Errorf("answer to unknown question index %q", ix)
}

func (r *reconstructor) submit() (workflow.Step, error) {
	if r.kind != screen.KindForm {
		return nil, fmt.Errorf("submit on %s screen", r.kind)
	}
	return workflow.SubmitFormStep{}, nil
}

// extends reports whether next is prev plus exactly one selection.
func extends(prev, next []string) bool {
	if len(next) != len(prev)+1 {
		return false
	}
	for i := range prev {
		if prev[i] != next[i] {
			return false
		}
	}
	return true
}

// inputs orders captured search inputs by the screen's field order. Keys the
// screen does not declare follow in lexical order.
func inputs(m map[string]any, fields []string) workflow.QueryInputs {
	if len(m) == 0 {
		return nil
	}
	out := make(workflow.QueryInputs, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range fields {
		if v, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			out = append(out, workflow.QueryInput{Key: k, Value: screen.AnswerText(v)})
		}
	}
	rest := make([]string, 0, len(m)-len(out))
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, workflow.QueryInput{Key: k, Value: screen.AnswerText(m[k])})
	}
	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}
