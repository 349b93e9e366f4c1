package screen

import (
	"testing"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want Kind
	}{
		{"empty", nil, KindStart},
		{"menu", map[string]any{"commands": []any{}}, KindMenu},
		{"case list", map[string]any{"entities": []any{}}, KindCaseList},
		{"split search is a case list live", map[string]any{"entities": []any{}, "queryResponse": map[string]any{}}, KindCaseList},
		{"search", map[string]any{"type": "query", "queryKey": "search_command.m0"}, KindSearch},
		{"detail", map[string]any{"details": []any{}}, KindDetail},
		{"form", map[string]any{"tree": []any{}, "session_id": "abc"}, KindForm},
		{"submit then menu", map[string]any{
			"submitResponseMessage": "Form successfully saved!",
			"nextScreen":            map[string]any{"commands": []any{}},
		}, KindMenu},
		{"submit with no next screen", map[string]any{"submitResponseMessage": "ok", "nextScreen": nil}, KindStart},
		{"commands win over entities", map[string]any{"commands": []any{}, "entities": []any{}}, KindMenu},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	_, err := Classify(map[string]any{"errors": []any{"bad selection", "try again"}})
	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"bad selection", "try again"}, pe.Errors)

	_, err = Classify(map[string]any{"foo": 1, "bar": 2})
	var ue *domain.UnrecognizedScreenError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"bar", "foo"}, ue.Keys)
}

func TestClassifyCapture_SplitSearch(t *testing.T) {
	got, err := ClassifyCapture(map[string]any{
		"entities":      []any{},
		"queryResponse": map[string]any{"queryKey": "search_command.m1"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindSplitSearch, got)

	got, err = ClassifyCapture(map[string]any{"entities": []any{}})
	require.NoError(t, err)
	assert.Equal(t, KindCaseList, got)
}

func TestViews(t *testing.T) {
	menu := map[string]any{
		"selections": []any{"0"},
		"commands": []any{
			map[string]any{"index": float64(0), "displayText": "Register"},
			map[string]any{"index": float64(1), "displayText": "Followup"},
		},
	}
	cmds, err := Commands(menu)
	require.NoError(t, err)
	assert.Equal(t, []Command{{Index: "0", DisplayText: "Register"}, {Index: "1", DisplayText: "Followup"}}, cmds)
	assert.Equal(t, []string{"0"}, Selections(menu))

	form := map[string]any{
		"session_id":  "sess-1",
		"instanceXml": map[string]any{"output": "<data/>"},
		"tree": []any{
			map[string]any{"ix": "0", "type": "question", "caption": "Name", "question_id": "name", "datatype": "str"},
			map[string]any{"ix": "1", "type": "group", "caption": "Details", "children": []any{
				map[string]any{"ix": "1,0", "type": "question", "caption": "Age", "question_id": "age", "datatype": "int", "answer": float64(3)},
				map[string]any{"ix": "1,1", "type": "question", "caption": "Note", "datatype": "info"},
			}},
		},
	}
	qs, err := Questions(form)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "name", qs[0].QuestionID)
	assert.Equal(t, "1,0", qs[1].Ix)
	assert.Equal(t, float64(3), qs[1].Answer)
	assert.Equal(t, "sess-1", SessionID(form))
	assert.Equal(t, "<data/>", InstanceXML(form))

	split := map[string]any{"entities": []any{}, "queryResponse": map[string]any{"queryKey": "search_command.m1"}}
	assert.Equal(t, "search_command.m1", QueryKey(split))

	search := map[string]any{"queryKey": "search_command.m2", "displays": []any{
		map[string]any{"id": "village", "text": "Village"},
		map[string]any{"id": "name", "text": "Name"},
	}}
	assert.Equal(t, []string{"village", "name"}, QueryFields(search))
	assert.Empty(t, QueryFields(split))
}
