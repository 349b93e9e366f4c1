package tui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport(t *testing.T) {
	out := RunReport("visits", []string{"Open application -> MENU"}, nil)
	assert.Contains(t, out, "# Run: visits")
	assert.Contains(t, out, "- `Open application -> MENU`")
	assert.Contains(t, out, "**Passed**")

	out = RunReport("visits", nil, errors.New("boom"))
	assert.Contains(t, out, "_No steps executed._")
	assert.Contains(t, out, "**Failed:** boom")
}

func TestDiscoveryReport(t *testing.T) {
	out, err := DiscoveryReport([]workflow.Workflow{
		workflow.New(workflow.CommandStep{Value: "Patients"}),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "# Discovered 1 workflows")
	assert.Contains(t, out, "## Workflow 1")
	assert.Contains(t, out, `Select menu "Patients"`)
}

func TestPrint_NonTerminalIsRaw(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	require.NoError(t, Print(&buf, "# Title\n"))
	assert.Equal(t, "# Title\n", buf.String())
}
