package dsl_test

import (
	"strings"
	"testing"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grammar = `
# every directive once
Select menu "Case List"
Select menu with id "m0-f1"
Select entity "case-1"
Select entities "a", "b"
Select entity at index 2
Select entities at indexes 0, 3
Validate search inputs name="bob", dob="2020-01-01"
Search name="bob"
Search name="bob" with validation
Clear search
Start form
  Answer question "Name" with "bob"
  Answer question with id "name" with "bob"
  Submit form
  Expect question "/data/name" to be "bob"
End form
Raw navigation {"selections":["0"]}
Expect xpath "count(/data/x) > 0"
Expect case present "@case_type='patient'"
Expect case absent "@case_type='patient'"
`

func grammarWorkflow() workflow.Workflow {
	bob := workflow.QueryInputs{{Key: "name", Value: "bob"}}
	return workflow.New(
		workflow.CommandStep{Value: "Case List"},
		workflow.CommandIDStep{Value: "m0-f1"},
		workflow.EntitySelectStep{Value: "case-1"},
		workflow.MultipleEntitySelectStep{Values: []string{"a", "b"}},
		workflow.EntitySelectIndexStep{Value: 2},
		workflow.MultipleEntitySelectByIndexStep{Values: []int{0, 3}},
		workflow.QueryInputValidationStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}, {Key: "dob", Value: "2020-01-01"}}},
		workflow.QueryStep{Inputs: bob},
		workflow.QueryStep{Inputs: bob, ValidateInputs: true},
		workflow.ClearQueryStep{},
		workflow.FormStep{Entries: []workflow.Entry{
			workflow.AnswerQuestionStep{QuestionText: "Name", Value: "bob"},
			workflow.AnswerQuestionIDStep{QuestionID: "name", Value: "bob"},
			workflow.SubmitFormStep{},
			workflow.QuestionValue{QuestionPath: "/data/name", Value: "bob"},
		}},
		workflow.RawNavigationStep{RequestData: map[string]any{"selections": []any{"0"}}},
		workflow.XpathExpectation{Xpath: "count(/data/x) > 0"},
		workflow.CasePresent{XpathFilter: "@case_type='patient'"},
		workflow.CaseAbsent{XpathFilter: "@case_type='patient'"},
	)
}

func TestParse_Grammar(t *testing.T) {
	got, err := dsl.ParseString(grammar)
	require.NoError(t, err)
	assert.Equal(t, grammarWorkflow(), got)
}

func TestParse_CoversEveryTag(t *testing.T) {
	seen := map[string]bool{}
	var walk func([]workflow.Entry)
	walk = func(entries []workflow.Entry) {
		for _, e := range entries {
			seen[e.Type()] = true
			if f, ok := e.(workflow.FormStep); ok {
				walk(f.Entries)
			}
		}
	}
	walk(grammarWorkflow().Steps)
	for _, tag := range workflow.Tags() {
		assert.True(t, seen[tag], "fixture misses %s", tag)
	}
}

func TestRoundTrip(t *testing.T) {
	fixtures := map[string]workflow.Workflow{
		"grammar": grammarWorkflow(),
		"empty":   workflow.New(),
		"escapes": workflow.New(
			workflow.CommandStep{Value: `Say "hi" \ bye`},
			workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "first name", Value: "a,b=c"}}},
			workflow.QueryStep{},
			workflow.QueryStep{ValidateInputs: true},
			workflow.QueryInputValidationStep{},
			workflow.FormStep{},
		),
		"raw data": workflow.New(
			workflow.RawNavigationStep{RequestData: map[string]any{}},
			workflow.RawNavigationStep{RequestData: map[string]any{"selections": []any{"0", "1"}, "offset": 10.0, "nested": map[string]any{"ok": true}}},
		),
		"single selections": workflow.New(
			workflow.MultipleEntitySelectStep{Values: []string{"only"}},
			workflow.MultipleEntitySelectByIndexStep{Values: []int{0}},
		),
	}
	for name, wf := range fixtures {
		t.Run(name, func(t *testing.T) {
			text, err := dsl.Format(wf)
			require.NoError(t, err)
			got, err := dsl.ParseString(text)
			require.NoError(t, err, text)
			assert.Equal(t, wf, got, text)
		})
	}
}

func TestFormat_RejectsInexpressible(t *testing.T) {
	tests := []struct {
		name  string
		entry workflow.Entry
		err   string
	}{
		{"no entities", workflow.MultipleEntitySelectStep{}, "at least one value"},
		{"empty entities", workflow.MultipleEntitySelectStep{Values: []string{}}, "at least one value"},
		{"no indexes", workflow.MultipleEntitySelectByIndexStep{}, "at least one value"},
		{"nil raw data", workflow.RawNavigationStep{}, "request data is required"},
		{"raw data not json", workflow.RawNavigationStep{RequestData: map[string]any{"f": func() {}}}, "unsupported type"},
		{"navigation in form", workflow.FormStep{Entries: []workflow.Entry{workflow.CommandStep{Value: "A"}}}, "not allowed inside a form"},
		{"nested form", workflow.FormStep{Entries: []workflow.Entry{workflow.FormStep{}}}, "not allowed inside a form"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dsl.Format(workflow.New(tt.entry))
			assert.ErrorContains(t, err, tt.err)
		})
	}
	assert.Equal(t, workflow.TagMultipleEntitySelect, dsl.Text(workflow.MultipleEntitySelectStep{}))
}

func TestFormat_IndentsForms(t *testing.T) {
	text, err := dsl.Format(dsl.New().Menu("Register").Form(func(f *dsl.FormBuilder) {
		f.Answer("Name", "bob").Submit()
	}).Build())
	require.NoError(t, err)
	assert.Equal(t, "Select menu \"Register\"\nStart form\n  Answer question \"Name\" with \"bob\"\n  Submit form\nEnd form\n", text)
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	got, err := dsl.ParseString("select MENU \"Register\"\n  SUBMIT FORM\n")
	require.NoError(t, err)
	assert.Equal(t, workflow.New(workflow.CommandStep{Value: "Register"}, workflow.SubmitFormStep{}), got)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"unknown directive", "Select menu \"A\"\nTeleport home\n", 2},
		{"unterminated quote", "Select menu \"A\n", 1},
		{"unclosed form", "Start form\nSubmit form\n", 1},
		{"stray end", "End form\n", 1},
		{"nested form", "Start form\nStart form\n", 2},
		{"navigation inside form", "Start form\nSelect menu \"A\"\nEnd form\n", 2},
		{"bad json", "Raw navigation {nope}\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dsl.ParseString(tt.text)
			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestBuilder(t *testing.T) {
	wf := dsl.New().
		Menu("Case List").
		MenuID("m0-f1").
		Entity("case-1").
		Entities("a", "b").
		EntityAt(2).
		EntitiesAt(0, 3).
		ValidateSearch(dsl.Input("name", "bob"), dsl.Input("dob", "2020-01-01")).
		Search(dsl.Input("name", "bob")).
		SearchWithValidation(dsl.Input("name", "bob")).
		ClearSearch().
		Form(func(f *dsl.FormBuilder) {
			f.Answer("Name", "bob").AnswerID("name", "bob").Submit().ExpectQuestion("/data/name", "bob")
		}).
		Raw(map[string]any{"selections": []any{"0"}}).
		ExpectXpath("count(/data/x) > 0").
		ExpectCasePresent("@case_type='patient'").
		ExpectCaseAbsent("@case_type='patient'").
		Build()

	assert.Equal(t, grammarWorkflow(), wf)
}

func TestText(t *testing.T) {
	assert.Equal(t, `Search name="bob" with validation`,
		dsl.Text(workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}}, ValidateInputs: true}))
	assert.Equal(t, "Start form", dsl.Text(workflow.FormStep{}))
	assert.True(t, strings.HasPrefix(dsl.Text(workflow.CasePresent{XpathFilter: "x"}), "Expect case present"))
}
