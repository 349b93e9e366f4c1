package mockapp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/google/uuid"
)

const (
	searchPrefix  = "search_command."
	submitMessage = "Form successfully saved!"
)

// App serves a Definition in process. It implements ports.Channel.
// App is safe for concurrent use.
type App struct {
	def *Definition

	mu    sync.Mutex
	cases map[string][]Case // by case list name
	forms map[string]*formSession
}

type formSession struct {
	name    string
	form    *Form
	answers map[string]any // by ix
}

// New creates an App from a validated definition.
func New(def *Definition) *App {
	cases := make(map[string][]Case, len(def.CaseLists))
	for name, list := range def.CaseLists {
		cases[name] = append([]Case(nil), list.Cases...)
	}
	return &App{
		def:   def,
		cases: cases,
		forms: make(map[string]*formSession),
	}
}

// Definition returns the served definition.
func (a *App) Definition() *Definition { return a.def }

// Cases returns the current cases of a case list.
func (a *App) Cases(list string) []Case {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Case(nil), a.cases[list]...)
}

// Send implements ports.Channel.
// Failures of the simulated application are reported in the response body.
func (a *App) Send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if d, _ := payload["domain"].(string); a.def.Domain != "" && d != "" && d != a.def.Domain {
		return failure("unknown domain %q", d), nil
	}

	switch endpoint {
	case workflow.EndpointSync:
		return map[string]any{"status": "success"}, nil
	case workflow.EndpointNavigateStart:
		return a.navigate(nil, nil, nil)
	case workflow.EndpointNavigate:
		return a.navigate(stringList(payload["selections"]), stringList(payload["selectedValues"]), mapValue(payload["query_data"]))
	case workflow.EndpointAnswer:
		return a.answer(payload)
	case workflow.EndpointSubmit:
		return a.submit(payload)
	case workflow.EndpointEvaluateXpath, workflow.EndpointEvaluateMenu:
		return a.evaluate(payload)
	}
	return failure("unknown endpoint %q", endpoint), nil
}

type position struct {
	menu     []Command
	listName string
	formName string
}

func (a *App) navigate(selections, selectedValues []string, queryData map[string]any) (map[string]any, error) {
	cur := position{menu: a.def.Menu}
	for _, sel := range selections {
		switch {
		case cur.formName != "":
			return failure("selection %q after a form", sel), nil
		case cur.listName != "":
			list := a.def.CaseLists[cur.listName]
			ids := []string{sel}
			if sel == workflow.SelectedValuesSentinel {
				ids = selectedValues
			}
			for _, id := range ids {
				if !a.hasCase(cur.listName, id) {
					return failure("case %q not found", id), nil
				}
			}
			cur = position{menu: list.Menu, formName: list.Form}
		default:
			i, err := strconv.Atoi(sel)
			if err != nil || i < 0 || i >= len(cur.menu) {
				return failure("invalid menu selection %q", sel), nil
			}
			cmd := cur.menu[i]
			cur = position{menu: cmd.Menu, listName: cmd.CaseList, formName: cmd.Form}
		}
	}

	sel := make([]any, 0, len(selections))
	for _, s := range selections {
		sel = append(sel, s)
	}
	switch {
	case cur.formName != "":
		return a.openForm(cur.formName, sel), nil
	case cur.listName != "":
		return a.caseList(cur.listName, sel, queryData), nil
	}
	commands := make([]any, 0, len(cur.menu))
	for i, c := range cur.menu {
		commands = append(commands, map[string]any{"index": i, "displayText": c.Text})
	}
	return map[string]any{"title": a.def.Name, "selections": sel, "commands": commands}, nil
}

func (a *App) hasCase(list, id string) bool {
	for _, c := range a.cases[list] {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (a *App) caseList(name string, sel []any, queryData map[string]any) map[string]any {
	list := a.def.CaseLists[name]
	key := searchPrefix + name

	var filter map[string]any
	if q := mapValue(queryData[key]); q != nil && q["execute"] == true {
		filter = mapValue(q["inputs"])
	}

	entities := []any{}
	for _, c := range a.cases[name] {
		if !matches(c, filter) {
			continue
		}
		data := make([]any, 0, len(list.Columns))
		for _, col := range list.Columns {
			data = append(data, c.Properties[col])
		}
		entities = append(entities, map[string]any{"id": c.ID, "data": data})
	}
	resp := map[string]any{"title": name, "selections": sel, "entities": entities}
	if len(list.Search) > 0 {
		displays := make([]any, 0, len(list.Search))
		for _, f := range list.Search {
			displays = append(displays, map[string]any{"id": f, "text": f})
		}
		resp["queryResponse"] = map[string]any{"queryKey": key, "type": "query", "displays": displays}
	}
	return resp
}

func matches(c Case, filter map[string]any) bool {
	for k, v := range filter {
		want := strings.ToLower(fmt.Sprint(v))
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(c.Properties[k]), want) {
			return false
		}
	}
	return true
}

func (a *App) openForm(name string, sel []any) map[string]any {
	fs := &formSession{name: name, form: a.def.Forms[name], answers: map[string]any{}}
	id := uuid.NewString()
	a.forms[id] = fs
	resp := a.renderForm(id, fs)
	resp["selections"] = sel
	return resp
}

func (a *App) renderForm(id string, fs *formSession) map[string]any {
	tree := make([]any, 0, len(fs.form.Questions))
	for i, q := range fs.form.Questions {
		ix := strconv.Itoa(i)
		node := map[string]any{
			"ix":          ix,
			"type":        "question",
			"caption":     q.Caption,
			"question_id": q.ID,
			"binding":     "/data/" + q.ID,
			"datatype":    q.Datatype,
			"required":    q.Required,
			"answer":      fs.answers[ix],
		}
		if len(q.Choices) > 0 {
			node["choices"] = q.Choices
		}
		tree = append(tree, node)
	}
	return map[string]any{
		"title":       fs.form.Title,
		"session_id":  id,
		"tree":        tree,
		"instanceXml": map[string]any{"output": instanceXML(fs)},
	}
}

func (a *App) formSession(payload map[string]any) (string, *formSession, map[string]any) {
	id, _ := payload["session_id"].(string)
	fs, ok := a.forms[id]
	if !ok {
		return "", nil, failure("form session %q not found", id)
	}
	return id, fs, nil
}

func (a *App) answer(payload map[string]any) (map[string]any, error) {
	id, fs, fail := a.formSession(payload)
	if fail != nil {
		return fail, nil
	}
	ix := fmt.Sprint(payload["ix"])
	i, err := strconv.Atoi(ix)
	if err != nil || i < 0 || i >= len(fs.form.Questions) {
		return failure("invalid question index %q", ix), nil
	}
	fs.answers[ix] = payload["answer"]
	return a.renderForm(id, fs), nil
}

func (a *App) submit(payload map[string]any) (map[string]any, error) {
	id, fs, fail := a.formSession(payload)
	if fail != nil {
		return fail, nil
	}
	for k, v := range mapValue(payload["answers"]) {
		fs.answers[k] = v
	}

	var missing []string
	props := map[string]string{}
	for i, q := range fs.form.Questions {
		v, ok := fs.answers[strconv.Itoa(i)]
		if (!ok || v == nil || v == "") && q.Required {
			missing = append(missing, q.Caption+" is required")
			continue
		}
		if ok && v != nil {
			props[q.ID] = fmt.Sprint(v)
		}
	}
	if len(missing) > 0 {
		return map[string]any{"errors": toAny(missing)}, nil
	}

	if fs.form.CreatesCase != "" {
		props["case_type"] = fs.form.CreatesCase
		a.cases[fs.form.CreatesCase] = append(a.cases[fs.form.CreatesCase], Case{ID: uuid.NewString(), Properties: props})
	}
	delete(a.forms, id)
	return map[string]any{"submitResponseMessage": submitMessage, "nextScreen": nil}, nil
}

func failure(format string, args ...any) map[string]any {
	return map[string]any{"status": "error", "exception": fmt.Sprintf(format, args...)}
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

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func toAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
