package discovery

import (
	"github.com/aretw0/apptrail/pkg/screen"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// Placeholder answers by question datatype.
const (
	textAnswer     = "test"
	selectAnswer   = "1"
	intAnswer      = "1"
	decimalAnswer  = "1.0"
	fallbackAnswer = "placeholder"
	dateLayout     = "2006-01-02"
)

// Branches returns the steps that can be taken from the current screen of sess.
// An empty result means the exploration is complete.
func (e *Engine) Branches(sess workflow.Session) ([]workflow.Step, error) {
	data := sess.Screen()
	kind, err := screen.Classify(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case screen.KindMenu:
		commands, err := screen.Commands(screen.Effective(data))
		if err != nil {
			return nil, err
		}
		out := make([]workflow.Step, 0, len(commands))
		for _, c := range commands {
			out = append(out, workflow.CommandStep{Value: c.DisplayText})
		}
		return out, nil

	case screen.KindCaseList:
		entities, err := screen.Entities(screen.Effective(data))
		if err != nil {
			return nil, err
		}
		if len(entities) == 0 {
			e.logger.Warn("Case list without cases", "title", data["title"])
			return nil, nil
		}
		return []workflow.Step{workflow.EntitySelectStep{Value: entities[0].ID}}, nil

	case screen.KindForm:
		questions, err := screen.Questions(data)
		if err != nil {
			return nil, err
		}
		entries := make([]workflow.Entry, 0, len(questions)+1)
		for _, q := range questions {
			entries = append(entries, workflow.AnswerQuestionStep{QuestionText: q.Caption, Value: e.answerFor(q)})
		}
		entries = append(entries, workflow.SubmitFormStep{})
		return []workflow.Step{workflow.FormStep{Entries: entries}}, nil

	case screen.KindSearch, screen.KindSplitSearch, screen.KindDetail:
		e.logger.Warn("Screen not supported by discovery", "kind", kind)
		return nil, nil
	}
	return nil, nil
}

func (e *Engine) answerFor(q screen.Node) string {
	switch q.Datatype {
	case "str", "text":
		return textAnswer
	case "date":
		return e.now().Format(dateLayout)
	case "select", "multiselect":
		return selectAnswer
	case "int":
		return intAnswer
	case "decimal":
		return decimalAnswer
	default:
		return fallbackAnswer
	}
}
