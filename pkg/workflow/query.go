package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/screen"
)

// QueryInput is one search field and its value.
type QueryInput struct {
	Key   string
	Value string
}

// QueryInputs is an ordered set of search fields. Order is preserved through
// JSON and the text DSL.
type QueryInputs []QueryInput

// Map returns the inputs as a plain map for the request body.
func (q QueryInputs) Map() map[string]any {
	out := make(map[string]any, len(q))
	for _, in := range q {
		out[in.Key] = in.Value
	}
	return out
}

// Get returns the value of key.
func (q QueryInputs) Get(key string) (string, bool) {
	for _, in := range q {
		if in.Key == key {
			return in.Value, true
		}
	}
	return "", false
}

// MarshalJSON encodes the inputs as a JSON object in insertion order.
func (q QueryInputs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, in := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(in.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(in.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document.
func (q *QueryInputs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*q = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("query inputs: expected object, got %v", tok)
	}
	var out QueryInputs
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, QueryInput{Key: key, Value: scalarString(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*q = out
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// QueryInputValidationStep submits search inputs without executing the search.
type QueryInputValidationStep struct {
	Inputs QueryInputs `json:"inputs"`
}

func (QueryInputValidationStep) Type() string { return TagQueryInputValidation }
func (QueryInputValidationStep) isStep()      {}

func (v QueryInputValidationStep) Request(s Session) (Request, error) {
	return queryRequest(s, v.Inputs.Map(), false)
}

// QueryStep executes a search. With ValidateInputs set it first runs one
// validation step per input, each carrying the inputs accumulated so far.
type QueryStep struct {
	Inputs         QueryInputs `json:"inputs"`
	ValidateInputs bool        `json:"validate_inputs,omitempty"`
}

func (QueryStep) Type() string { return TagQuery }
func (QueryStep) isStep()      {}

// Children expands the step when validation is requested.
func (q QueryStep) Children() []Entry {
	if !q.ValidateInputs {
		return nil
	}
	out := make([]Entry, 0, len(q.Inputs)+1)
	for i := range q.Inputs {
		prefix := append(QueryInputs(nil), q.Inputs[:i+1]...)
		out = append(out, QueryInputValidationStep{Inputs: prefix})
	}
	return append(out, QueryStep{Inputs: q.Inputs})
}

func (q QueryStep) Request(s Session) (Request, error) {
	return queryRequest(s, q.Inputs.Map(), true)
}

// ClearQueryStep resets the search inputs of the current query.
type ClearQueryStep struct{}

func (ClearQueryStep) Type() string { return TagClearQuery }
func (ClearQueryStep) isStep()      {}

func (ClearQueryStep) Request(s Session) (Request, error) {
	return queryRequest(s, nil, false)
}

func queryRequest(s Session, inputs map[string]any, execute bool) (Request, error) {
	key := screen.QueryKey(s.Screen())
	if key == "" {
		return Request{}, &domain.ProtocolError{Errors: []string{"current screen has no query key"}}
	}
	data := s.NavigationData()
	queryData := map[string]any{}
	if existing, ok := data["query_data"].(map[string]any); ok {
		for k, v := range existing {
			queryData[k] = v
		}
	}
	var in any
	if inputs != nil {
		in = inputs
	}
	queryData[key] = map[string]any{
		"inputs":              in,
		"execute":             execute,
		"force_manual_search": true,
	}
	data["query_data"] = queryData
	return Request{Endpoint: EndpointNavigate, Data: data}, nil
}
