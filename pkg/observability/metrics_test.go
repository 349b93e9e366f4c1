package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/apptrail/internal/testutils"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/observability"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menu(texts ...string) map[string]any {
	cmds := make([]any, 0, len(texts))
	for i, t := range texts {
		cmds = append(cmds, map[string]any{"index": i, "displayText": t})
	}
	return map[string]any{"commands": cmds, "selections": []any{}}
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	ch := &testutils.Channel{Replies: []map[string]any{
		menu("Register", "Search"),
		{"tree": []any{}, "session_id": "f1"},
		{"output": "<result>false</result>"},
	}}
	sess := session.New(ch, session.Config{Domain: "demo", Username: "u"})
	wf := workflow.New(
		workflow.CommandStep{Value: "Register"},
		workflow.FormStep{Entries: []workflow.Entry{workflow.SubmitFormStep{}}},
		workflow.XpathExpectation{Xpath: "true()"},
	)

	r := runner.New(runner.WithHooks(m.Hooks()), runner.WithFormPolicy(runner.FormsIgnore))
	err := r.Run(context.Background(), sess, wf)
	require.ErrorIs(t, err, domain.ErrExpectationFailed)

	for name, want := range map[string]int{
		"apptrail_steps_total":           2,
		"apptrail_step_duration_seconds": 2,
		"apptrail_steps_skipped_total":   1,
		"apptrail_expectations_total":    1,
	} {
		n, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, want, n, name)
	}

	expected := `
# HELP apptrail_expectations_total Evaluated expectations by type and result.
# TYPE apptrail_expectations_total counter
apptrail_expectations_total{expectation_type="expect:xpath",result="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "apptrail_expectations_total"))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)

	ctx := context.Background()
	hooks.OnStepDone(ctx, &domain.StepEvent{Text: `Select menu "Register"`, Screen: "FORM"})
	hooks.OnExpectation(ctx, &domain.ExpectationEvent{Text: `Expect xpath "true()"`, Err: domain.ErrExpectationFailed})

	out := buf.String()
	assert.Contains(t, out, "msg=step_done")
	assert.Contains(t, out, "screen=FORM")
	assert.Contains(t, out, "level=WARN msg=expectation")
}
