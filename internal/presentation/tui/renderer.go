package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		if err != nil {
			return markdown, err
		}
		return r.Render(markdown)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes markdown to w, styled when w is a terminal and raw otherwise.
func Print(w io.Writer, markdown string) error {
	if IsTerminal(w) {
		if out, err := NewRenderer()(markdown); err == nil {
			markdown = out
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}

// RunReport summarizes a finished run as markdown.
func RunReport(name string, log []string, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run: %s\n\n", name)
	for _, line := range log {
		fmt.Fprintf(&b, "- `%s`\n", line)
	}
	if len(log) == 0 {
		b.WriteString("_No steps executed._\n")
	}
	b.WriteString("\n")
	if runErr != nil {
		fmt.Fprintf(&b, "**Failed:** %s\n", runErr)
	} else {
		b.WriteString("**Passed**\n")
	}
	return b.String()
}

// DiscoveryReport lists discovered workflows in their text form.
func DiscoveryReport(wfs []workflow.Workflow) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Discovered %d workflows\n", len(wfs))
	for i, wf := range wfs {
		text, err := dsl.Format(wf)
		if err != nil {
			return "", fmt.Errorf("workflow %d: %w", i+1, err)
		}
		fmt.Fprintf(&b, "\n## Workflow %d\n\n```\n%s```\n", i+1, text)
	}
	return b.String(), nil
}
