package workflow_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	screen   map[string]any
	reply    map[string]any
	endpoint string
	sent     map[string]any
}

func (f *fakeSession) Screen() map[string]any { return f.screen }

func (f *fakeSession) NavigationData() map[string]any {
	return map[string]any{"app_id": "app", "selections": []string{"0"}}
}

func (f *fakeSession) FormData() map[string]any {
	return map[string]any{"domain": "demo"}
}

func (f *fakeSession) Send(_ context.Context, endpoint string, data map[string]any) (map[string]any, error) {
	f.endpoint = endpoint
	f.sent = data
	return f.reply, nil
}

var menuScreen = map[string]any{
	"selections": []any{"0"},
	"commands": []any{
		map[string]any{"index": float64(0), "displayText": "Register Patient"},
		map[string]any{"index": float64(1), "displayText": "Followup"},
	},
}

var caseListScreen = map[string]any{
	"entities": []any{
		map[string]any{"id": "case-a"},
		map[string]any{"id": "case-b"},
	},
	"queryResponse": map[string]any{"queryKey": "search_command.m1"},
}

var formScreen = map[string]any{
	"session_id": "form-1",
	"tree": []any{
		map[string]any{"ix": "0", "type": "question", "caption": "Name", "question_id": "name", "binding": "/data/name", "datatype": "str", "answer": "bob"},
		map[string]any{"ix": "1", "type": "question", "caption": "Age", "question_id": "age", "binding": "/data/age", "datatype": "int"},
	},
}

func TestTags_Disjoint(t *testing.T) {
	steps := map[string]bool{}
	for _, tag := range workflow.StepTags() {
		assert.False(t, steps[tag], "duplicate step tag %s", tag)
		steps[tag] = true
	}
	for _, tag := range workflow.ExpectationTags() {
		assert.False(t, steps[tag], "tag %s used by a step and an expectation", tag)
		assert.True(t, strings.HasPrefix(tag, "expect:"))
	}
	assert.Len(t, workflow.Tags(), len(workflow.StepTags())+len(workflow.ExpectationTags()))
}

func TestCommandStep_CaseInsensitive(t *testing.T) {
	sess := &fakeSession{screen: menuScreen}

	req, err := workflow.CommandStep{Value: "followup"}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, workflow.EndpointNavigate, req.Endpoint)
	assert.Equal(t, []string{"0", "1"}, req.Data["selections"])
	assert.Equal(t, "app", req.Data["app_id"])
}

func TestCommandStep_Unknown(t *testing.T) {
	sess := &fakeSession{screen: menuScreen}

	_, err := workflow.CommandStep{Value: "Close Case"}.Request(sess)
	var re *domain.StepResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"Register Patient", "Followup"}, re.Known)
}

func TestEntitySelection(t *testing.T) {
	sess := &fakeSession{screen: caseListScreen}

	req, err := workflow.EntitySelectStep{Value: "case-b"}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "case-b"}, req.Data["selections"])

	req, err = workflow.MultipleEntitySelectStep{Values: []string{"case-a", "case-b"}}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", workflow.SelectedValuesSentinel}, req.Data["selections"])
	assert.Equal(t, []string{"case-a", "case-b"}, req.Data["selectedValues"])

	_, err = workflow.MultipleEntitySelectStep{Values: []string{"case-a", "case-z"}}.Request(sess)
	var re *domain.StepResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "case-z", re.Target)
}

func TestEntitySelectIndex_OutOfRange(t *testing.T) {
	sess := &fakeSession{screen: caseListScreen}

	req, err := workflow.EntitySelectIndexStep{Value: 1}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "case-b"}, req.Data["selections"])

	_, err = workflow.EntitySelectIndexStep{Value: 2}.Request(sess)
	var re *domain.StepResolutionError
	assert.ErrorAs(t, err, &re)

	_, err = workflow.MultipleEntitySelectByIndexStep{Values: []int{0, -1}}.Request(sess)
	assert.ErrorAs(t, err, &re)
}

func TestQueryStep_Expand(t *testing.T) {
	inputs := workflow.QueryInputs{{Key: "name", Value: "bob"}, {Key: "dob", Value: "2020-01-01"}}

	leaf, kids := workflow.Expand(workflow.QueryStep{Inputs: inputs, ValidateInputs: true})
	assert.Nil(t, leaf)
	assert.Equal(t, []workflow.Entry{
		workflow.QueryInputValidationStep{Inputs: inputs[:1]},
		workflow.QueryInputValidationStep{Inputs: inputs},
		workflow.QueryStep{Inputs: inputs},
	}, kids)

	leaf, kids = workflow.Expand(workflow.QueryStep{Inputs: inputs})
	assert.NotNil(t, leaf)
	assert.Nil(t, kids)

	leaf, kids = workflow.Expand(workflow.FormStep{})
	assert.Nil(t, leaf)
	assert.Nil(t, kids)
}

func TestQueryRequests(t *testing.T) {
	sess := &fakeSession{screen: caseListScreen}
	inputs := workflow.QueryInputs{{Key: "name", Value: "bob"}}

	req, err := workflow.QueryStep{Inputs: inputs}.Request(sess)
	require.NoError(t, err)
	queryData := req.Data["query_data"].(map[string]any)
	assert.Equal(t, map[string]any{
		"inputs":              map[string]any{"name": "bob"},
		"execute":             true,
		"force_manual_search": true,
	}, queryData["search_command.m1"])

	req, err = workflow.QueryInputValidationStep{Inputs: inputs}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, false, req.Data["query_data"].(map[string]any)["search_command.m1"].(map[string]any)["execute"])

	req, err = workflow.ClearQueryStep{}.Request(sess)
	require.NoError(t, err)
	assert.Nil(t, req.Data["query_data"].(map[string]any)["search_command.m1"].(map[string]any)["inputs"])

	_, err = workflow.ClearQueryStep{}.Request(&fakeSession{screen: menuScreen})
	var pe *domain.ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestFormSteps(t *testing.T) {
	sess := &fakeSession{screen: formScreen}

	req, err := workflow.AnswerQuestionStep{QuestionText: "Age", Value: "7"}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, workflow.EndpointAnswer, req.Endpoint)
	assert.Equal(t, "1", req.Data["ix"])
	assert.Equal(t, "7", req.Data["answer"])
	assert.Equal(t, "form-1", req.Data["session_id"])

	req, err = workflow.AnswerQuestionIDStep{QuestionID: "name", Value: "ann"}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, "0", req.Data["ix"])

	req, err = workflow.SubmitFormStep{}.Request(sess)
	require.NoError(t, err)
	assert.Equal(t, workflow.EndpointSubmit, req.Endpoint)
	assert.Equal(t, map[string]any{"0": "bob"}, req.Data["answers"])
	assert.Equal(t, true, req.Data["prevalidated"])

	_, err = workflow.AnswerQuestionStep{QuestionText: "Height", Value: "1"}.Request(sess)
	var re *domain.StepResolutionError
	assert.ErrorAs(t, err, &re)

	_, err = workflow.SubmitFormStep{}.Request(&fakeSession{screen: menuScreen})
	var pe *domain.ProtocolError
	assert.ErrorAs(t, err, &pe)

	assert.True(t, workflow.IsFormScoped(workflow.SubmitFormStep{}))
	assert.False(t, workflow.IsFormScoped(workflow.CommandStep{}))
}

func allVariants() workflow.Workflow {
	return workflow.New(
		workflow.CommandStep{Value: "Register"},
		workflow.CommandIDStep{Value: "m0-f1"},
		workflow.EntitySelectStep{Value: "case-1"},
		workflow.MultipleEntitySelectStep{Values: []string{"a", "b"}},
		workflow.EntitySelectIndexStep{Value: 2},
		workflow.MultipleEntitySelectByIndexStep{Values: []int{0, 3}},
		workflow.QueryInputValidationStep{Inputs: workflow.QueryInputs{{Key: "z", Value: "1"}, {Key: "a", Value: "2"}}},
		workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}}, ValidateInputs: true},
		workflow.ClearQueryStep{},
		workflow.FormStep{Entries: []workflow.Entry{
			workflow.AnswerQuestionStep{QuestionText: "Name", Value: "bob"},
			workflow.AnswerQuestionIDStep{QuestionID: "age", Value: "3"},
			workflow.SubmitFormStep{},
		}},
		workflow.RawNavigationStep{RequestData: map[string]any{"selections": []any{"0"}}},
		workflow.XpathExpectation{Xpath: "count(/data/x) > 0"},
		workflow.CasePresent{XpathFilter: "@case_type='patient'"},
		workflow.CaseAbsent{XpathFilter: "@status='closed'"},
		workflow.QuestionValue{QuestionPath: "/data/name", Value: "bob"},
	)
}

func TestWorkflow_JSONRoundTrip(t *testing.T) {
	wf := allVariants()

	data, err := json.Marshal(wf)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"type":"query_input_validation","inputs":{"z":"1","a":"2"}}`)
	assert.Contains(t, string(data), `"type":"expect:case_absent"`)

	var got workflow.Workflow
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, wf, got)
}

func TestFormStep_RejectsNavigationChildren(t *testing.T) {
	_, err := workflow.UnmarshalEntry([]byte(`{"type":"form","children":[{"type":"command","value":"A"}]}`))
	assert.ErrorContains(t, err, "command is not allowed inside a form")

	_, err = workflow.UnmarshalEntry([]byte(`{"type":"form","children":[{"type":"answer_question","question_text":"Name","value":"x"},{"type":"expect:xpath","xpath":"true()"}]}`))
	assert.NoError(t, err)

	_, err = json.Marshal(workflow.New(workflow.FormStep{Entries: []workflow.Entry{workflow.ClearQueryStep{}}}))
	assert.Error(t, err)

	assert.NoError(t, workflow.CheckFormChild(workflow.SubmitFormStep{}))
	assert.Error(t, workflow.CheckFormChild(workflow.FormStep{}))
}

func TestUnmarshalEntry_UnknownType(t *testing.T) {
	_, err := workflow.UnmarshalEntry([]byte(`{"type":"teleport"}`))
	assert.ErrorContains(t, err, "unknown entry type")
}

func TestQuestionValue(t *testing.T) {
	ctx := context.Background()

	ok, err := workflow.QuestionValue{QuestionPath: "/data/name", Value: "bob"}.Evaluate(ctx, &fakeSession{screen: formScreen})
	require.NoError(t, err)
	assert.True(t, ok)

	withInstance := map[string]any{
		"session_id":  "form-1",
		"tree":        []any{},
		"instanceXml": map[string]any{"output": "<data><child><name>x</name></child><child><name>y</name></child></data>"},
	}
	ok, err = workflow.QuestionValue{QuestionPath: "/data/child[2]/name", Value: "y"}.Evaluate(ctx, &fakeSession{screen: withInstance})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = workflow.QuestionValue{QuestionPath: "/data/child[1]/name", Value: "y"}.Evaluate(ctx, &fakeSession{screen: withInstance})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = workflow.QuestionValue{QuestionPath: "/data/child[3]/name", Value: "y"}.Evaluate(ctx, &fakeSession{screen: withInstance})
	assert.ErrorContains(t, err, "not found in instance")

	_, err = workflow.QuestionValue{QuestionPath: "/data/child[", Value: "y"}.Evaluate(ctx, &fakeSession{screen: withInstance})
	assert.ErrorContains(t, err, "invalid question path")

	escaped := map[string]any{
		"session_id":  "form-1",
		"tree":        []any{},
		"instanceXml": map[string]any{"output": "<data><note> a &amp; b </note></data>"},
	}
	ok, err = workflow.QuestionValue{QuestionPath: "/data/note", Value: "a & b"}.Evaluate(ctx, &fakeSession{screen: escaped})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestXpathExpectations(t *testing.T) {
	ctx := context.Background()

	sess := &fakeSession{screen: formScreen, reply: map[string]any{"output": "<result>true</result>"}}
	ok, err := workflow.CasePresent{XpathFilter: "@case_type='patient'"}.Evaluate(ctx, sess)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, workflow.EndpointEvaluateXpath, sess.endpoint)
	assert.Equal(t, "form-1", sess.sent["session_id"])
	assert.Equal(t, "count(instance('casedb')/casedb/case[@case_type='patient']) > 0", sess.sent["xpath"])

	sess = &fakeSession{screen: menuScreen, reply: map[string]any{"output": "false"}}
	ok, err = workflow.CaseAbsent{XpathFilter: "@x='1'"}.Evaluate(ctx, sess)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, workflow.EndpointEvaluateMenu, sess.endpoint)
	assert.Equal(t, []string{"0"}, sess.sent["selections"])
	assert.Equal(t, "count(instance('casedb')/casedb/case[@x='1']) = 0", sess.sent["xpath"])
}
