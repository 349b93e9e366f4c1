package workflow

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// lookupInstance resolves a question path such as /data/group[2]/name against
// the form instance. Positional predicates are 1-based, as in xpath.
func lookupInstance(doc, path string) (string, error) {
	root, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parse instance: %w", err)
	}
	n, err := xmlquery.Query(root, path)
	if err != nil {
		return "", fmt.Errorf("invalid question path %q: %w", path, err)
	}
	if n == nil {
		return "", fmt.Errorf("question %s not found in instance", path)
	}
	return strings.TrimSpace(n.InnerText()), nil
}
