package screen

import (
	"fmt"
	"sort"

	"github.com/aretw0/apptrail/pkg/domain"
)

// Kind is the classification of the latest response from the remote service.
type Kind string

const (
	KindStart       Kind = "START"
	KindMenu        Kind = "MENU"
	KindCaseList    Kind = "CASE_LIST"
	KindDetail      Kind = "DETAIL"
	KindSearch      Kind = "SEARCH"
	KindSplitSearch Kind = "SPLIT_SEARCH"
	KindForm        Kind = "FORM"
)

// Wire keys of the response body. They are part of the remote contract.
const (
	keyCommands       = "commands"
	keyEntities       = "entities"
	keyType           = "type"
	keyDetails        = "details"
	keyTree           = "tree"
	keySubmitResponse = "submitResponseMessage"
	keyNextScreen     = "nextScreen"
	keyErrors         = "errors"
	keySelections     = "selections"
	keyQueryKey       = "queryKey"
	keyQueryResponse  = "queryResponse"
	keySessionID      = "session_id"
	keyInstanceXML    = "instanceXml"
	keyDisplays       = "displays"

	queryMarker = "query"
)

// Classify derives the screen kind from the shape of a response.
// It never returns KindSplitSearch; see ClassifyCapture.
func Classify(data map[string]any) (Kind, error) {
	if len(data) == 0 {
		return KindStart, nil
	}
	switch {
	case has(data, keyCommands):
		return KindMenu, nil
	case has(data, keyEntities):
		return KindCaseList, nil
	case data[keyType] == queryMarker:
		return KindSearch, nil
	case has(data, keyDetails):
		return KindDetail, nil
	case has(data, keyTree):
		return KindForm, nil
	case has(data, keySubmitResponse):
		next, _ := data[keyNextScreen].(map[string]any)
		return Classify(next)
	case has(data, keyErrors):
		return "", &domain.ProtocolError{Errors: stringList(data[keyErrors])}
	}
	return "", &domain.UnrecognizedScreenError{Keys: keys(data)}
}

// ClassifyCapture is Classify plus detection of split search screens: a case list
// that carries a companion query block. Only traffic reconstruction uses it.
func ClassifyCapture(data map[string]any) (Kind, error) {
	kind, err := Classify(data)
	if err != nil {
		return "", err
	}
	if kind == KindCaseList && has(Effective(data), keyQueryResponse) {
		return KindSplitSearch, nil
	}
	return kind, nil
}

// Effective unwraps a form submission response to the screen that follows it.
func Effective(data map[string]any) map[string]any {
	for isSubmitWrapper(data) {
		next, _ := data[keyNextScreen].(map[string]any)
		data = next
	}
	return data
}

// isSubmitWrapper reports whether data is a form submission result that only
// points at the next screen.
func isSubmitWrapper(data map[string]any) bool {
	if !has(data, keySubmitResponse) {
		return false
	}
	return !has(data, keyCommands) && !has(data, keyEntities) && data[keyType] != queryMarker &&
		!has(data, keyDetails) && !has(data, keyTree)
}

func has(data map[string]any, key string) bool {
	v, ok := data[key]
	return ok && v != nil
}

func keys(data map[string]any) []string {
	out := make([]string, 0, len(data))
	for k := range data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case []string:
		return t
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(t)}
	}
}
