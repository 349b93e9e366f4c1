package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// Mask replaces every sensitive value on save.
const Mask = "***"

type piiMiddleware struct {
	next     ports.WorkflowStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers, search inputs and
// raw request fields whose question, key or field name matches a pattern.
// Masked workflows still parse but will not reproduce the original input.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.WorkflowStore) ports.WorkflowStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, rec *ports.StoredWorkflow) error {
	// The caller's workflow is left untouched.
	cloned := *rec
	cloned.Workflow = workflow.Workflow{Steps: m.maskEntries(rec.Workflow.Steps)}
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*ports.StoredWorkflow, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) maskEntries(entries []workflow.Entry) []workflow.Entry {
	out := make([]workflow.Entry, len(entries))
	for i, e := range entries {
		out[i] = m.maskEntry(e)
	}
	return out
}

func (m *piiMiddleware) maskEntry(e workflow.Entry) workflow.Entry {
	switch v := e.(type) {
	case workflow.FormStep:
		return workflow.FormStep{Entries: m.maskEntries(v.Entries)}
	case workflow.AnswerQuestionStep:
		if m.sensitive(v.QuestionText) {
			v.Value = Mask
		}
		return v
	case workflow.AnswerQuestionIDStep:
		if m.sensitive(v.QuestionID) {
			v.Value = Mask
		}
		return v
	case workflow.QueryStep:
		v.Inputs = m.maskInputs(v.Inputs)
		return v
	case workflow.QueryInputValidationStep:
		v.Inputs = m.maskInputs(v.Inputs)
		return v
	case workflow.RawNavigationStep:
		v.RequestData = deepCopyMap(v.RequestData)
		maskMap(v.RequestData, m.patterns)
		return v
	}
	return e
}

func (m *piiMiddleware) maskInputs(in workflow.QueryInputs) workflow.QueryInputs {
	if in == nil {
		return nil
	}
	out := make(workflow.QueryInputs, len(in))
	for i, qi := range in {
		if m.sensitive(qi.Key) {
			qi.Value = Mask
		}
		out[i] = qi
	}
	return out
}

func (m *piiMiddleware) sensitive(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// Helpers

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
