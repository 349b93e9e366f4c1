package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// GraphOverlay marks the path a run took through the graph.
type GraphOverlay struct {
	// Path is the executed prefix of one workflow.
	Path []workflow.Entry
	// Failed marks the last entry of Path as the point where the run stopped.
	Failed bool
}

type node struct {
	id       string
	label    string
	entry    workflow.Entry
	children []*node
}

func (n *node) child(e workflow.Entry) *node {
	label := nodeLabel(e)
	for _, c := range n.children {
		if c.label == label {
			return c
		}
	}
	c := &node{id: n.id + "_" + strconv.Itoa(len(n.children)), label: label, entry: e}
	n.children = append(n.children, c)
	return c
}

// GenerateMermaid merges workflows into a Mermaid flowchart. Workflows that
// share a prefix share nodes, so the chart reads as the navigation tree of
// the application. It applies semantic styling:
// - Open application: ((Circle))
// - Form: [/Parallelogram/]
// - Search: {{Hexagon}}
// - Expectation: {Rhombus}
// - Default: [Rectangle]
func GenerateMermaid(wfs []workflow.Workflow, overlay *GraphOverlay) string {
	root := &node{id: "n", label: "Open application"}
	for _, wf := range wfs {
		cur := root
		for _, e := range wf.Steps {
			cur = cur.child(e)
		}
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	writeNode(&sb, root)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")

		cur := root
		visited := []string{root.id}
		for _, e := range overlay.Path {
			cur = find(cur, nodeLabel(e))
			if cur == nil {
				break
			}
			visited = append(visited, cur.id)
		}
		last := len(visited) - 1
		for i, id := range visited {
			class := "visited"
			if i == last && overlay.Failed && last > 0 {
				class = "failed"
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", id, class))
		}
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, n *node) {
	opener, closer := "[", "]"
	switch n.entry.(type) {
	case nil:
		opener, closer = "((", "))"
	case workflow.FormStep:
		opener, closer = "[/", "/]"
	case workflow.QueryStep, workflow.QueryInputValidationStep, workflow.ClearQueryStep:
		opener, closer = "{{", "}}"
	case workflow.Expectation:
		opener, closer = "{", "}"
	}
	sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", n.id, opener, n.label, closer))

	for _, c := range n.children {
		arrow := "-->"
		if _, isExpectation := c.entry.(workflow.Expectation); isExpectation {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", n.id, arrow, c.id))
	}
	for _, c := range n.children {
		writeNode(sb, c)
	}
}

func find(n *node, label string) *node {
	for _, c := range n.children {
		if c.label == label {
			return c
		}
	}
	return nil
}

func nodeLabel(e workflow.Entry) string {
	var label string
	if form, ok := e.(workflow.FormStep); ok {
		label = fmt.Sprintf("Form: %d answers", answers(form))
		if submits(form) {
			label += ", submit"
		}
	} else {
		label = dsl.Text(e)
	}
	// Mermaid labels cannot contain double quotes
	return strings.ReplaceAll(label, "\"", "'")
}

func answers(f workflow.FormStep) int {
	n := 0
	for _, e := range f.Entries {
		switch e.(type) {
		case workflow.AnswerQuestionStep, workflow.AnswerQuestionIDStep:
			n++
		}
	}
	return n
}

func submits(f workflow.FormStep) bool {
	for _, e := range f.Entries {
		if _, ok := e.(workflow.SubmitFormStep); ok {
			return true
		}
	}
	return false
}
