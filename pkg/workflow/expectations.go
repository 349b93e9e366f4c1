package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/apptrail/pkg/screen"
)

// XpathExpectation holds when the remote service evaluates the expression to true.
type XpathExpectation struct {
	Xpath string `json:"xpath"`
}

func (XpathExpectation) Type() string   { return TagExpectXpath }
func (XpathExpectation) isExpectation() {}

func (x XpathExpectation) Evaluate(ctx context.Context, s Session) (bool, error) {
	return evaluateXpath(ctx, s, x.Xpath)
}

// CasePresent holds when at least one case in the case database matches the filter.
type CasePresent struct {
	XpathFilter string `json:"xpath_filter"`
}

func (CasePresent) Type() string   { return TagExpectCasePresent }
func (CasePresent) isExpectation() {}

func (c CasePresent) Evaluate(ctx context.Context, s Session) (bool, error) {
	return evaluateXpath(ctx, s, fmt.Sprintf("count(%s) > 0", caseQuery(c.XpathFilter)))
}

// CaseAbsent holds when no case in the case database matches the filter.
type CaseAbsent struct {
	XpathFilter string `json:"xpath_filter"`
}

func (CaseAbsent) Type() string   { return TagExpectCaseAbsent }
func (CaseAbsent) isExpectation() {}

func (c CaseAbsent) Evaluate(ctx context.Context, s Session) (bool, error) {
	return evaluateXpath(ctx, s, fmt.Sprintf("count(%s) = 0", caseQuery(c.XpathFilter)))
}

// QuestionValue holds when the form question bound to QuestionPath has the
// given answer. The form tree is searched first, then the instance XML.
type QuestionValue struct {
	QuestionPath string `json:"question_path"`
	Value        string `json:"value"`
}

func (QuestionValue) Type() string   { return TagExpectQuestionValue }
func (QuestionValue) isExpectation() {}

func (q QuestionValue) Evaluate(_ context.Context, s Session) (bool, error) {
	tree, err := screen.Tree(s.Screen())
	if err != nil {
		return false, err
	}
	for _, n := range screen.Flatten(tree) {
		if n.Binding == q.QuestionPath {
			return screen.AnswerText(n.Answer) == q.Value, nil
		}
	}
	doc := screen.InstanceXML(s.Screen())
	if doc == "" {
		return false, fmt.Errorf("question %s not found in form", q.QuestionPath)
	}
	got, err := lookupInstance(doc, q.QuestionPath)
	if err != nil {
		return false, err
	}
	return got == q.Value, nil
}

func caseQuery(filter string) string {
	return fmt.Sprintf("instance('casedb')/casedb/case[%s]", filter)
}

func evaluateXpath(ctx context.Context, s Session, xpath string) (bool, error) {
	kind, err := screen.Classify(s.Screen())
	if err != nil {
		return false, err
	}
	var (
		endpoint string
		data     map[string]any
	)
	if kind == screen.KindForm {
		endpoint = EndpointEvaluateXpath
		data = s.FormData()
		data["session_id"] = screen.SessionID(s.Screen())
	} else {
		endpoint = EndpointEvaluateMenu
		data = s.NavigationData()
	}
	data["xpath"] = xpath
	data["debugOutput"] = "basic"

	resp, err := s.Send(ctx, endpoint, data)
	if err != nil {
		return false, err
	}
	out, _ := resp["output"].(string)
	out = strings.ReplaceAll(out, "<result>", "")
	out = strings.ReplaceAll(out, "</result>", "")
	return strings.TrimSpace(out) == "true", nil
}
