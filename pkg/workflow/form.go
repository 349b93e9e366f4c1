package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/screen"
)

// AnswerQuestionStep answers the question whose caption matches exactly.
type AnswerQuestionStep struct {
	QuestionText string `json:"question_text"`
	Value        string `json:"value"`
}

func (AnswerQuestionStep) Type() string { return TagAnswerQuestion }
func (AnswerQuestionStep) isStep()      {}
func (AnswerQuestionStep) formScoped()  {}

func (a AnswerQuestionStep) Request(s Session) (Request, error) {
	return answer(s, TagAnswerQuestion, a.QuestionText, a.Value, func(n screen.Node) string { return n.Caption })
}

// AnswerQuestionIDStep answers the question with the given question id.
type AnswerQuestionIDStep struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

func (AnswerQuestionIDStep) Type() string { return TagAnswerQuestionID }
func (AnswerQuestionIDStep) isStep()      {}
func (AnswerQuestionIDStep) formScoped()  {}

func (a AnswerQuestionIDStep) Request(s Session) (Request, error) {
	return answer(s, TagAnswerQuestionID, a.QuestionID, a.Value, func(n screen.Node) string { return n.QuestionID })
}

// SubmitFormStep submits every answered question of the open form.
type SubmitFormStep struct{}

func (SubmitFormStep) Type() string { return TagSubmitForm }
func (SubmitFormStep) isStep()      {}
func (SubmitFormStep) formScoped()  {}

func (SubmitFormStep) Request(s Session) (Request, error) {
	questions, err := formQuestions(s, TagSubmitForm)
	if err != nil {
		return Request{}, err
	}
	answers := map[string]any{}
	for _, q := range questions {
		if q.Answer != nil {
			answers[q.Ix] = q.Answer
		}
	}
	data := s.FormData()
	data["action"] = "submit-all"
	data["answers"] = answers
	data["prevalidated"] = true
	data["session_id"] = screen.SessionID(s.Screen())
	return Request{Endpoint: EndpointSubmit, Data: data}, nil
}

// FormStep groups the entries executed while a form is open.
type FormStep struct {
	Entries []Entry
}

func (FormStep) Type() string { return TagForm }
func (FormStep) isStep()      {}

func (f FormStep) Children() []Entry { return f.Entries }

type formJSON struct {
	Children []json.RawMessage `json:"children"`
}

// CheckFormChild reports an error unless e may appear inside a form: answers,
// submission and expectations.
func CheckFormChild(e Entry) error {
	if _, ok := e.(Expectation); ok || IsFormScoped(e) {
		return nil
	}
	return fmt.Errorf("%s is not allowed inside a form", e.Type())
}

func (f FormStep) checkChildren() error {
	for _, e := range f.Entries {
		if err := CheckFormChild(e); err != nil {
			return fmt.Errorf("form: %w", err)
		}
	}
	return nil
}

func (f FormStep) MarshalJSON() ([]byte, error) {
	if err := f.checkChildren(); err != nil {
		return nil, err
	}
	kids, err := encodeEntries(f.Entries)
	if err != nil {
		return nil, err
	}
	return json.Marshal(formJSON{Children: kids})
}

func (f *FormStep) UnmarshalJSON(data []byte) error {
	var raw formJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kids, err := decodeEntries(raw.Children)
	if err != nil {
		return fmt.Errorf("form: %w", err)
	}
	decoded := FormStep{Entries: kids}
	if err := decoded.checkChildren(); err != nil {
		return err
	}
	*f = decoded
	return nil
}

func answer(s Session, step, target, value string, key func(screen.Node) string) (Request, error) {
	questions, err := formQuestions(s, step)
	if err != nil {
		return Request{}, err
	}
	known := make([]string, 0, len(questions))
	for _, q := range questions {
		if key(q) == target {
			data := s.FormData()
			data["action"] = "answer"
			data["ix"] = q.Ix
			data["answer"] = value
			data["answersToValidate"] = map[string]any{}
			data["session_id"] = screen.SessionID(s.Screen())
			return Request{Endpoint: EndpointAnswer, Data: data}, nil
		}
		known = append(known, key(q))
	}
	return Request{}, &domain.StepResolutionError{Step: step, Target: target, Known: known}
}

func formQuestions(s Session, step string) ([]screen.Node, error) {
	kind, err := screen.Classify(s.Screen())
	if err != nil {
		return nil, err
	}
	if kind != screen.KindForm {
		return nil, &domain.ProtocolError{Errors: []string{fmt.Sprintf("%s requires a form, current screen is %s", step, kind)}}
	}
	return screen.Questions(s.Screen())
}
