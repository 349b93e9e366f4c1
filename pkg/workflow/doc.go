// Package workflow defines the closed set of steps and expectations that make up
// a workflow, and their JSON encoding.
//
// Every variant carries a stable tag. Leaf steps build exactly one request from
// the session state; container steps (FormStep, QueryStep with input
// validation) run an ordered list of children instead. Use Expand to tell them
// apart. Expectations are evaluated against the session after the preceding
// steps ran.
//
//	wf := workflow.New(
//		workflow.CommandStep{Value: "Register"},
//		workflow.FormStep{Entries: []workflow.Entry{
//			workflow.AnswerQuestionStep{QuestionText: "Name", Value: "bob"},
//			workflow.SubmitFormStep{},
//		}},
//		workflow.CasePresent{XpathFilter: "@case_type='patient'"},
//	)
package workflow
