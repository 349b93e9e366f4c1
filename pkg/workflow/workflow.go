package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Session is the read-only view of a running session that steps and expectations need.
// Implementations must return fresh maps from the *Data methods so that steps can
// extend them without touching session state.
type Session interface {
	// Screen returns the latest response. It must be treated as immutable.
	Screen() map[string]any
	// NavigationData returns the base body of a menu navigation request.
	NavigationData() map[string]any
	// FormData returns the base body of a form request.
	FormData() map[string]any
	// Send posts a request to the remote service without recording it.
	Send(ctx context.Context, endpoint string, data map[string]any) (map[string]any, error)
}

// Entry is one element of a workflow: a Step or an Expectation.
type Entry interface {
	// Type returns the stable tag used in JSON and by the text DSL.
	Type() string
}

// Step is a declarative user action.
type Step interface {
	Entry
	isStep()
}

// Expectation is a declarative assertion evaluated against session state.
type Expectation interface {
	Entry
	isExpectation()
	Evaluate(ctx context.Context, s Session) (bool, error)
}

// Request is what a leaf step sends to the remote service.
type Request struct {
	Endpoint string
	Data     map[string]any
}

// Leaf is a step that builds exactly one request.
type Leaf interface {
	Step
	Request(s Session) (Request, error)
}

// Container is a step that executes as an ordered list of children.
type Container interface {
	Step
	Children() []Entry
}

// Expand reports how a step executes. Exactly one of the results is set for
// executable steps: either the leaf that builds the request or the children
// that run in its place. An empty container yields neither.
func Expand(s Step) (Leaf, []Entry) {
	if c, ok := s.(Container); ok {
		if kids := c.Children(); len(kids) > 0 {
			return nil, kids
		}
	}
	if l, ok := s.(Leaf); ok {
		return l, nil
	}
	return nil, nil
}

// formScoped marks steps that only make sense inside an open form.
type formScoped interface {
	formScoped()
}

// IsFormScoped reports whether the entry acts on a form (answers and submission).
func IsFormScoped(e Entry) bool {
	_, ok := e.(formScoped)
	return ok
}

// Workflow is an ordered sequence of steps and expectations.
type Workflow struct {
	Steps []Entry
}

// New creates a workflow from entries.
func New(entries ...Entry) Workflow {
	return Workflow{Steps: entries}
}

type workflowJSON struct {
	Steps []json.RawMessage `json:"steps"`
}

// MarshalJSON encodes the workflow as {"steps": [...]}.
func (w Workflow) MarshalJSON() ([]byte, error) {
	steps, err := encodeEntries(w.Steps)
	if err != nil {
		return nil, err
	}
	return json.Marshal(workflowJSON{Steps: steps})
}

// UnmarshalJSON decodes {"steps": [...]} using the static tag table.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var raw workflowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries, err := decodeEntries(raw.Steps)
	if err != nil {
		return err
	}
	w.Steps = entries
	return nil
}

// MarshalEntry encodes a single entry as {"type": "<tag>", ...fields}.
func MarshalEntry(e Entry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: not a JSON object", e.Type())
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(e.Type()))
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalEntry decodes a single tagged entry.
func UnmarshalEntry(data []byte) (Entry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	dec, ok := registry[head.Type]
	if !ok {
		return nil, fmt.Errorf("unknown entry type %q", head.Type)
	}
	return dec(data)
}

func encodeEntries(entries []Entry) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		b, err := MarshalEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func decodeEntries(raw []json.RawMessage) ([]Entry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Entry, 0, len(raw))
	for i, r := range raw {
		e, err := UnmarshalEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

type decoder func(data []byte) (Entry, error)

func decodeAs[T Entry](data []byte) (Entry, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", v.Type(), err)
	}
	return v, nil
}

// registry is the closed tag table. Every variant appears exactly once.
var registry = map[string]decoder{
	TagCommand:                     decodeAs[CommandStep],
	TagCommandID:                   decodeAs[CommandIDStep],
	TagEntitySelect:                decodeAs[EntitySelectStep],
	TagMultipleEntitySelect:        decodeAs[MultipleEntitySelectStep],
	TagEntitySelectIndex:           decodeAs[EntitySelectIndexStep],
	TagMultipleEntitySelectByIndex: decodeAs[MultipleEntitySelectByIndexStep],
	TagQueryInputValidation:        decodeAs[QueryInputValidationStep],
	TagQuery:                       decodeAs[QueryStep],
	TagClearQuery:                  decodeAs[ClearQueryStep],
	TagAnswerQuestion:              decodeAs[AnswerQuestionStep],
	TagAnswerQuestionID:            decodeAs[AnswerQuestionIDStep],
	TagSubmitForm:                  decodeAs[SubmitFormStep],
	TagForm:                        decodeAs[FormStep],
	TagRawNavigation:               decodeAs[RawNavigationStep],
	TagExpectXpath:                 decodeAs[XpathExpectation],
	TagExpectCasePresent:           decodeAs[CasePresent],
	TagExpectCaseAbsent:            decodeAs[CaseAbsent],
	TagExpectQuestionValue:         decodeAs[QuestionValue],
}

// StepTags lists the tags of every Step variant.
func StepTags() []string {
	return []string{
		TagCommand, TagCommandID, TagEntitySelect, TagMultipleEntitySelect,
		TagEntitySelectIndex, TagMultipleEntitySelectByIndex, TagQueryInputValidation,
		TagQuery, TagClearQuery, TagAnswerQuestion, TagAnswerQuestionID,
		TagSubmitForm, TagForm, TagRawNavigation,
	}
}

// ExpectationTags lists the tags of every Expectation variant.
func ExpectationTags() []string {
	return []string{TagExpectXpath, TagExpectCasePresent, TagExpectCaseAbsent, TagExpectQuestionValue}
}

// Tags lists every registered tag in sorted order.
func Tags() []string {
	out := make([]string, 0, len(registry))
	for tag := range registry {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
