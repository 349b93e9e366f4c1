package traffic_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/apptrail/pkg/adapters/mockapp"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"
	"github.com/aretw0/apptrail/pkg/traffic"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://hq.example.org/a/demo/cloudcare/api"

const visitsApp = `
name: Visits
domain: demo
app_id: visits-app
menu:
  - text: Visits
    menu:
      - text: Home Visit
        form: visit
forms:
  visit:
    title: Home Visit
    questions:
      - {id: intro, caption: Welcome, datatype: info}
      - {id: temperature, caption: Temperature, datatype: decimal}
      - {id: notes, caption: Notes, datatype: text}
`

// record runs wf against app and returns the captured traffic.
func record(t *testing.T, app *mockapp.App, appID string, wf workflow.Workflow) []traffic.Entry {
	t.Helper()
	rec := traffic.NewRecorder(app, baseURL)
	sess := session.New(rec, session.Config{Domain: "demo", AppID: appID, Username: "nurse@demo"})
	require.NoError(t, runner.New().Run(context.Background(), sess, wf))
	return rec.Entries()
}

func visits(t *testing.T) *mockapp.App {
	t.Helper()
	def, err := mockapp.Parse([]byte(visitsApp))
	require.NoError(t, err)
	return mockapp.New(def)
}

func TestReconstruct_MenuMenuForm(t *testing.T) {
	wf := dsl.New().
		Menu("visits").
		Menu("Home Visit").
		Form(func(f *dsl.FormBuilder) {
			f.Answer("Temperature", "37.5").Answer("Notes", "all good").Submit()
		}).
		Build()
	entries := record(t, visits(t), "visits-app", wf)

	res, err := traffic.Reconstruct(entries)
	require.NoError(t, err)

	assert.Equal(t, workflow.New(
		workflow.CommandStep{Value: "Visits"},
		workflow.CommandStep{Value: "Home Visit"},
		workflow.FormStep{Entries: []workflow.Entry{
			workflow.AnswerQuestionIDStep{QuestionID: "temperature", Value: "37.5"},
			workflow.AnswerQuestionIDStep{QuestionID: "notes", Value: "all good"},
			workflow.SubmitFormStep{},
		}},
	), res.Workflow)
	assert.Equal(t, "demo", res.Domain)
	assert.Equal(t, "visits-app", res.AppID)
	assert.Equal(t, baseURL, res.BaseURL)
}

func TestReconstruct_ReplayReproducesTraffic(t *testing.T) {
	def, err := mockapp.LoadFile("../adapters/mockapp/testdata/clinic.yaml")
	require.NoError(t, err)

	wf := dsl.New().
		Menu("Patients").
		Search(dsl.Input("name", "bob")).
		ClearSearch().
		Entity("p-2").
		Form(func(f *dsl.FormBuilder) {
			f.AnswerID("weight", "61.5").Submit()
		}).
		ExpectCasePresent("name='bob'").
		Build()
	first := record(t, mockapp.New(def), "clinic-app", wf)

	res, err := traffic.Reconstruct(first)
	require.NoError(t, err)
	assert.Equal(t, workflow.New(
		workflow.CommandStep{Value: "Patients"},
		workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}}},
		workflow.ClearQueryStep{},
		workflow.EntitySelectStep{Value: "p-2"},
		workflow.FormStep{Entries: []workflow.Entry{
			workflow.AnswerQuestionIDStep{QuestionID: "weight", Value: "61.5"},
			workflow.SubmitFormStep{},
		}},
	), res.Workflow)

	replay := record(t, mockapp.New(def), "clinic-app", res.Workflow)
	endpoints := func(entries []traffic.Entry) []string {
		var out []string
		for _, e := range entries {
			if e.Endpoint() != workflow.EndpointEvaluateMenu {
				out = append(out, e.Endpoint())
			}
		}
		return out
	}
	assert.Equal(t, endpoints(first), endpoints(replay))
}

func TestReconstruct_NavigationRules(t *testing.T) {
	menu := map[string]any{"commands": []any{
		map[string]any{"index": "0", "displayText": "Patients"},
	}}
	caseList := map[string]any{"entities": []any{}}
	splitSearch := map[string]any{"entities": []any{}, "queryResponse": map[string]any{
		"queryKey": "search_command.p",
		"type":     "query",
		"displays": []any{map[string]any{"id": "village"}, map[string]any{"id": "name"}},
	}}
	search := map[string]any{"type": "query", "queryKey": "search_command.p", "displays": []any{
		map[string]any{"id": "name"},
	}}
	query := func(q map[string]any) map[string]any {
		return map[string]any{"selections": []any{}, "query_data": map[string]any{"search_command.p": q}}
	}

	tests := []struct {
		name    string
		screen  map[string]any
		request map[string]any
		want    workflow.Step
	}{
		{
			name:    "Menu index resolves to display text",
			screen:  menu,
			request: map[string]any{"selections": []any{"0"}},
			want:    workflow.CommandStep{Value: "Patients"},
		},
		{
			name:    "Non-numeric menu selection",
			screen:  menu,
			request: map[string]any{"selections": []any{"m2"}},
			want:    workflow.CommandIDStep{Value: "m2"},
		},
		{
			name:    "Index missing from menu",
			screen:  menu,
			request: map[string]any{"selections": []any{"5"}},
			want:    workflow.CommandIDStep{Value: "5"},
		},
		{
			name:    "Case list action",
			screen:  caseList,
			request: map[string]any{"selections": []any{"action 0"}},
			want:    workflow.CommandIDStep{Value: "action 0"},
		},
		{
			name:    "Selected values marker",
			screen:  caseList,
			request: map[string]any{"selections": []any{workflow.SelectedValuesSentinel}, "selectedValues": []any{"a", "b"}},
			want:    workflow.MultipleEntitySelectStep{Values: []string{"a", "b"}},
		},
		{
			name:    "Entity on split search",
			screen:  splitSearch,
			request: map[string]any{"selections": []any{"p-1"}},
			want:    workflow.EntitySelectStep{Value: "p-1"},
		},
		{
			name:    "Validation on split search keeps field order",
			screen:  splitSearch,
			request: query(map[string]any{"inputs": map[string]any{"name": "bob", "village": "north", "age": "3"}}),
			want: workflow.QueryInputValidationStep{Inputs: workflow.QueryInputs{
				{Key: "village", Value: "north"}, {Key: "name", Value: "bob"}, {Key: "age", Value: "3"},
			}},
		},
		{
			name:    "Executed search",
			screen:  search,
			request: query(map[string]any{"inputs": map[string]any{"name": "bob"}, "execute": true}),
			want:    workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}}},
		},
		{
			name:    "Cleared search",
			screen:  splitSearch,
			request: query(map[string]any{"execute": false}),
			want:    workflow.ClearQueryStep{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := []traffic.Entry{
				{URL: baseURL + "/navigate_menu_start", Request: map[string]any{}, Response: tt.screen},
				{URL: baseURL + "/navigate_menu", Request: tt.request, Response: menu},
			}
			res, err := traffic.Reconstruct(entries)
			require.NoError(t, err)
			assert.Equal(t, workflow.New(tt.want), res.Workflow)
		})
	}

	t.Run("Search on a plain case list", func(t *testing.T) {
		entries := []traffic.Entry{
			{URL: baseURL + "/navigate_menu_start", Request: map[string]any{}, Response: caseList},
			{URL: baseURL + "/navigate_menu", Request: query(map[string]any{"inputs": map[string]any{"name": "bob"}}), Response: menu},
		}
		_, err := traffic.Reconstruct(entries)
		var re *domain.ReconstructionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 1, re.Index)
	})
}

func TestReconstruct_SkipsNoise(t *testing.T) {
	entries := record(t, visits(t), "visits-app", dsl.New().Menu("Visits").Build())
	noise := []traffic.Entry{
		{URL: baseURL + "/navigate_menu", Request: map[string]any{"selections": []any{"9"}}},
		{URL: "https://hq.example.org/static/app.js"},
	}
	entries = append(noise, entries...)

	res, err := traffic.Reconstruct(entries)
	require.NoError(t, err)
	assert.Equal(t, workflow.New(workflow.CommandStep{Value: "Visits"}), res.Workflow)
}

func TestReconstruct_Errors(t *testing.T) {
	entries := record(t, visits(t), "visits-app", dsl.New().Menu("Visits").Menu("Home Visit").Build())

	t.Run("No session start", func(t *testing.T) {
		_, err := traffic.Reconstruct(entries[1:])
		var re *domain.ReconstructionError
		assert.ErrorAs(t, err, &re)
	})

	t.Run("Domain changes", func(t *testing.T) {
		tampered := append([]traffic.Entry(nil), entries...)
		req := map[string]any{}
		for k, v := range tampered[2].Request {
			req[k] = v
		}
		req["domain"] = "other"
		tampered[2].Request = req

		_, err := traffic.Reconstruct(tampered)
		var re *domain.ReconstructionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Index)
		assert.Contains(t, re.Reason, "domain")
	})

	t.Run("Answer outside a form", func(t *testing.T) {
		bad := append(append([]traffic.Entry(nil), entries[:2]...), traffic.Entry{
			URL:      baseURL + "/answer",
			Request:  map[string]any{"ix": "0", "answer": "x"},
			Response: map[string]any{"tree": []any{}},
		})
		_, err := traffic.Reconstruct(bad)
		var re *domain.ReconstructionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Index)
	})
}

func TestHAR_RoundTrip(t *testing.T) {
	entries := record(t, visits(t), "visits-app", dsl.New().Menu("Visits").Build())

	var buf bytes.Buffer
	require.NoError(t, traffic.WriteHAR(&buf, entries, "apptrail"))

	loaded, err := traffic.ReadHAR(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)
}

func TestReadHAR_Filters(t *testing.T) {
	har := `{"log": {"version": "1.2", "entries": [
		{"request": {"method": "GET", "url": "https://hq.example.org/a/demo/cloudcare/api/navigate_menu_start"},
		 "response": {"status": 200, "content": {"text": "{}"}}},
		{"request": {"method": "POST", "url": "https://hq.example.org/a/demo/cloudcare/api/navigate_menu_start",
		             "postData": {"mimeType": "application/json", "text": "{\"domain\": \"demo\"}"}},
		 "response": {"status": 200, "content": {"mimeType": "application/json", "text": "{\"commands\": []}"}}},
		{"request": {"method": "POST", "url": "https://hq.example.org/a/demo/cloudcare/api/navigate_menu"},
		 "response": {"status": 500, "content": {"text": "boom"}}},
		{"request": {"method": "POST", "url": "https://hq.example.org/analytics/track"},
		 "response": {"status": 200, "content": {"text": "{}"}}}
	]}}`

	entries, err := traffic.ReadHAR(strings.NewReader(har))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "navigate_menu_start", entries[0].Endpoint())
	assert.Equal(t, "demo", entries[0].Request["domain"])
	assert.Equal(t, map[string]any{"commands": []any{}}, entries[0].Response)
}
