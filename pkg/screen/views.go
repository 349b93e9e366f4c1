package screen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Command is one entry of a MENU screen.
type Command struct {
	Index       string `mapstructure:"index"`
	DisplayText string `mapstructure:"displayText"`
}

// Entity is one row of a CASE_LIST screen.
type Entity struct {
	ID   string `mapstructure:"id"`
	Data []any  `mapstructure:"data"`
}

// Node is one element of a FORM tree: a question, a group or a repeat.
type Node struct {
	Ix         string   `mapstructure:"ix"`
	Type       string   `mapstructure:"type"`
	Caption    string   `mapstructure:"caption"`
	QuestionID string   `mapstructure:"question_id"`
	Binding    string   `mapstructure:"binding"`
	Datatype   string   `mapstructure:"datatype"`
	Required   bool     `mapstructure:"required"`
	Answer     any      `mapstructure:"answer"`
	Choices    []string `mapstructure:"choices"`
	Children   []Node   `mapstructure:"children"`
}

// IsQuestion reports whether the node accepts an answer.
func (n Node) IsQuestion() bool {
	return n.Type == "question" && n.Datatype != "info"
}

// Commands returns the commands of a MENU screen.
func Commands(data map[string]any) ([]Command, error) {
	var out []Command
	if err := decode(Effective(data)[keyCommands], &out); err != nil {
		return nil, fmt.Errorf("decode commands: %w", err)
	}
	return out, nil
}

// Entities returns the rows of a CASE_LIST screen.
func Entities(data map[string]any) ([]Entity, error) {
	var out []Entity
	if err := decode(Effective(data)[keyEntities], &out); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return out, nil
}

// Tree returns the top-level nodes of a FORM screen.
func Tree(data map[string]any) ([]Node, error) {
	var out []Node
	if err := decode(Effective(data)[keyTree], &out); err != nil {
		return nil, fmt.Errorf("decode form tree: %w", err)
	}
	return out, nil
}

// Flatten lists nodes depth-first, parents before their children.
func Flatten(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		out = append(out, n)
		out = append(out, Flatten(n.Children)...)
	}
	return out
}

// Questions returns the flattened, answerable nodes of a FORM screen.
func Questions(data map[string]any) ([]Node, error) {
	tree, err := Tree(data)
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, n := range Flatten(tree) {
		if n.IsQuestion() {
			out = append(out, n)
		}
	}
	return out, nil
}

// Selections returns the selection path that produced the screen.
func Selections(data map[string]any) []string {
	var out []string
	if err := decode(Effective(data)[keySelections], &out); err != nil {
		return nil
	}
	return out
}

// QueryKey returns the key under which query data is sent for this screen.
// Split search screens carry it in their companion query block.
func QueryKey(data map[string]any) string {
	data = Effective(data)
	if k, ok := data[keyQueryKey].(string); ok {
		return k
	}
	if q, ok := data[keyQueryResponse].(map[string]any); ok {
		k, _ := q[keyQueryKey].(string)
		return k
	}
	return ""
}

// QueryFields returns the ids of the search fields in display order.
func QueryFields(data map[string]any) []string {
	data = Effective(data)
	if q, ok := data[keyQueryResponse].(map[string]any); ok {
		data = q
	}
	var displays []struct {
		ID string `mapstructure:"id"`
	}
	if err := decode(data[keyDisplays], &displays); err != nil {
		return nil
	}
	out := make([]string, 0, len(displays))
	for _, d := range displays {
		if d.ID != "" {
			out = append(out, d.ID)
		}
	}
	return out
}

// SessionID returns the form session id of a FORM screen.
func SessionID(data map[string]any) string {
	s, _ := Effective(data)[keySessionID].(string)
	return s
}

// InstanceXML returns the serialized form instance attached to a FORM screen, if any.
func InstanceXML(data map[string]any) string {
	switch v := Effective(data)[keyInstanceXML].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["output"].(string)
		return s
	}
	return ""
}

func decode(input any, out any) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// AnswerText renders an answer value the way the remote service prints it.
// Multi-select answers are space separated.
func AnswerText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, AnswerText(e))
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(t, " ")
	default:
		return fmt.Sprint(t)
	}
}
