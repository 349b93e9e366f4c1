package dsl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/workflow"
)

const (
	startForm = "Start form"
	endForm   = "End form"
	indent    = "  "
)

// Format renders a workflow as text, one directive per line.
// Entries of a form block are indented.
func Format(wf workflow.Workflow) (string, error) {
	var b strings.Builder
	for _, e := range wf.Steps {
		if err := formatEntry(&b, e, ""); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func formatEntry(b *strings.Builder, e workflow.Entry, prefix string) error {
	if f, ok := e.(workflow.FormStep); ok {
		if prefix != "" {
			return errors.New("dsl: form blocks cannot be nested")
		}
		b.WriteString(startForm + "\n")
		for _, child := range f.Entries {
			if err := workflow.CheckFormChild(child); err != nil {
				return fmt.Errorf("dsl: %w", err)
			}
			if err := formatEntry(b, child, indent); err != nil {
				return err
			}
		}
		b.WriteString(endForm + "\n")
		return nil
	}
	text, err := Line(e)
	if err != nil {
		return err
	}
	b.WriteString(prefix + text + "\n")
	return nil
}

// Line renders a single non-container entry.
// A form step renders as its opening directive.
func Line(e workflow.Entry) (string, error) {
	if _, ok := e.(workflow.FormStep); ok {
		return startForm, nil
	}
	r, ok := rulesByTag[e.Type()]
	if !ok {
		return "", fmt.Errorf("dsl: no directive for %s", e.Type())
	}
	if r.check != nil {
		if err := r.check(e); err != nil {
			return "", fmt.Errorf("dsl: %s: %w", e.Type(), err)
		}
	}
	return r.format(e), nil
}

// Text is Line for log output; it never fails.
func Text(e workflow.Entry) string {
	s, err := Line(e)
	if err != nil {
		return e.Type()
	}
	return s
}

// Parse reads a workflow from text. Blank lines and lines starting with '#' are
// ignored, as is indentation. The first line that matches no directive aborts
// the parse with a *domain.ParseError.
func Parse(r io.Reader) (workflow.Workflow, error) {
	var (
		top      []workflow.Entry
		form     []workflow.Entry
		inForm   bool
		formLine int
		n        int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		switch {
		case strings.EqualFold(text, startForm):
			if inForm {
				return workflow.Workflow{}, &domain.ParseError{Line: n, Text: text, Err: errors.New("form blocks cannot be nested")}
			}
			inForm, formLine, form = true, n, nil
			continue
		case strings.EqualFold(text, endForm):
			if !inForm {
				return workflow.Workflow{}, &domain.ParseError{Line: n, Text: text, Err: errors.New("no open form block")}
			}
			top = append(top, workflow.FormStep{Entries: form})
			inForm = false
			continue
		}

		e, err := parseLine(n, text)
		if err != nil {
			return workflow.Workflow{}, err
		}
		if inForm {
			if err := workflow.CheckFormChild(e); err != nil {
				return workflow.Workflow{}, &domain.ParseError{Line: n, Text: text, Err: err}
			}
			form = append(form, e)
		} else {
			top = append(top, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return workflow.Workflow{}, fmt.Errorf("dsl: read: %w", err)
	}
	if inForm {
		return workflow.Workflow{}, &domain.ParseError{Line: formLine, Text: startForm, Err: errors.New("form block is not closed")}
	}
	return workflow.Workflow{Steps: top}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (workflow.Workflow, error) {
	return Parse(strings.NewReader(s))
}

func parseLine(n int, text string) (workflow.Entry, error) {
	for i := range rules {
		c, ok := rules[i].match(text)
		if !ok {
			continue
		}
		e, err := rules[i].parse(c)
		if err != nil {
			return nil, &domain.ParseError{Line: n, Text: text, Err: err}
		}
		return e, nil
	}
	return nil, &domain.ParseError{Line: n, Text: text}
}
