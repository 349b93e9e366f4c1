package workflow

import (
	"fmt"
	"strings"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/screen"
)

// Endpoints of the remote service.
const (
	EndpointNavigateStart = "navigate_menu_start"
	EndpointNavigate      = "navigate_menu"
	EndpointAnswer        = "answer"
	EndpointSubmit        = "submit-all"
	EndpointEvaluateXpath = "evaluate-xpath"
	EndpointEvaluateMenu  = "evaluate-menu-xpath"
	EndpointSync          = "sync-db"
)

// Entry tags.
const (
	TagCommand                     = "command"
	TagCommandID                   = "command_id"
	TagEntitySelect                = "entity_select"
	TagMultipleEntitySelect        = "multiple_entity_select"
	TagEntitySelectIndex           = "entity_select_index"
	TagMultipleEntitySelectByIndex = "multiple_entity_select_by_index"
	TagQueryInputValidation        = "query_input_validation"
	TagQuery                       = "query"
	TagClearQuery                  = "clear_query"
	TagAnswerQuestion              = "answer_question"
	TagAnswerQuestionID            = "answer_question_id"
	TagSubmitForm                  = "submit_form"
	TagForm                        = "form"
	TagRawNavigation               = "raw_navigation"
	TagExpectXpath                 = "expect:xpath"
	TagExpectCasePresent           = "expect:case_present"
	TagExpectCaseAbsent            = "expect:case_absent"
	TagExpectQuestionValue         = "expect:question_value"
)

// SelectedValuesSentinel is appended to the selections when several entities
// are chosen at once; the actual ids travel in "selectedValues".
const SelectedValuesSentinel = "use_selected_values"

// CommandStep selects a menu command by its display text, ignoring case.
type CommandStep struct {
	Value string `json:"value"`
}

func (CommandStep) Type() string { return TagCommand }
func (CommandStep) isStep()      {}

func (c CommandStep) Request(s Session) (Request, error) {
	cmds, err := screen.Commands(s.Screen())
	if err != nil {
		return Request{}, err
	}
	known := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		if strings.EqualFold(cmd.DisplayText, c.Value) {
			return navigate(s, cmd.Index), nil
		}
		known = append(known, cmd.DisplayText)
	}
	return Request{}, &domain.StepResolutionError{Step: TagCommand, Target: c.Value, Known: known}
}

// CommandIDStep selects a menu command by its raw selection id without
// checking it against the screen.
type CommandIDStep struct {
	Value string `json:"value"`
}

func (CommandIDStep) Type() string { return TagCommandID }
func (CommandIDStep) isStep()      {}

func (c CommandIDStep) Request(s Session) (Request, error) {
	return navigate(s, c.Value), nil
}

// EntitySelectStep selects one case by id from the current case list.
type EntitySelectStep struct {
	Value string `json:"value"`
}

func (EntitySelectStep) Type() string { return TagEntitySelect }
func (EntitySelectStep) isStep()      {}

func (e EntitySelectStep) Request(s Session) (Request, error) {
	ids, err := entityIDs(s)
	if err != nil {
		return Request{}, err
	}
	if !contains(ids, e.Value) {
		return Request{}, &domain.StepResolutionError{Step: TagEntitySelect, Target: e.Value, Known: ids}
	}
	return navigate(s, e.Value), nil
}

// MultipleEntitySelectStep selects several cases by id at once.
type MultipleEntitySelectStep struct {
	Values []string `json:"values,omitempty"`
}

func (MultipleEntitySelectStep) Type() string { return TagMultipleEntitySelect }
func (MultipleEntitySelectStep) isStep()      {}

func (m MultipleEntitySelectStep) Request(s Session) (Request, error) {
	ids, err := entityIDs(s)
	if err != nil {
		return Request{}, err
	}
	for _, v := range m.Values {
		if !contains(ids, v) {
			return Request{}, &domain.StepResolutionError{Step: TagMultipleEntitySelect, Target: v, Known: ids}
		}
	}
	return selectMany(s, m.Values), nil
}

// EntitySelectIndexStep selects the case at a zero-based position of the list.
type EntitySelectIndexStep struct {
	Value int `json:"value"`
}

func (EntitySelectIndexStep) Type() string { return TagEntitySelectIndex }
func (EntitySelectIndexStep) isStep()      {}

func (e EntitySelectIndexStep) Request(s Session) (Request, error) {
	ids, err := entityIDs(s)
	if err != nil {
		return Request{}, err
	}
	id, err := idAt(ids, e.Value, TagEntitySelectIndex)
	if err != nil {
		return Request{}, err
	}
	return navigate(s, id), nil
}

// MultipleEntitySelectByIndexStep selects several cases by zero-based position.
type MultipleEntitySelectByIndexStep struct {
	Values []int `json:"values,omitempty"`
}

func (MultipleEntitySelectByIndexStep) Type() string { return TagMultipleEntitySelectByIndex }
func (MultipleEntitySelectByIndexStep) isStep()      {}

func (m MultipleEntitySelectByIndexStep) Request(s Session) (Request, error) {
	ids, err := entityIDs(s)
	if err != nil {
		return Request{}, err
	}
	chosen := make([]string, 0, len(m.Values))
	for _, i := range m.Values {
		id, err := idAt(ids, i, TagMultipleEntitySelectByIndex)
		if err != nil {
			return Request{}, err
		}
		chosen = append(chosen, id)
	}
	return selectMany(s, chosen), nil
}

// RawNavigationStep sends an arbitrary navigation body merged over the base request.
// RequestData holds JSON values; numbers decoded from the text or JSON forms
// are float64.
type RawNavigationStep struct {
	RequestData map[string]any `json:"request_data"`
}

func (RawNavigationStep) Type() string { return TagRawNavigation }
func (RawNavigationStep) isStep()      {}

func (r RawNavigationStep) Request(s Session) (Request, error) {
	data := s.NavigationData()
	for k, v := range r.RequestData {
		data[k] = v
	}
	return Request{Endpoint: EndpointNavigate, Data: data}, nil
}

func navigate(s Session, selection string) Request {
	data := s.NavigationData()
	data["selections"] = appendSelection(data["selections"], selection)
	return Request{Endpoint: EndpointNavigate, Data: data}
}

func selectMany(s Session, ids []string) Request {
	data := s.NavigationData()
	data["selectedValues"] = append([]string(nil), ids...)
	data["selections"] = appendSelection(data["selections"], SelectedValuesSentinel)
	return Request{Endpoint: EndpointNavigate, Data: data}
}

func appendSelection(current any, v string) []string {
	var out []string
	switch t := current.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
	}
	return append(out, v)
}

func entityIDs(s Session) ([]string, error) {
	entities, err := screen.Entities(s.Screen())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func idAt(ids []string, i int, step string) (string, error) {
	if i < 0 || i >= len(ids) {
		return "", &domain.StepResolutionError{
			Step:   step,
			Target: fmt.Sprintf("index %d", i),
			Known:  []string{fmt.Sprintf("0..%d", len(ids)-1)},
		}
	}
	return ids[i], nil
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
