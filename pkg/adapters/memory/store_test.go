package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/apptrail/pkg/adapters/memory"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunWorkflowStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	form := workflow.FormStep{Entries: []workflow.Entry{workflow.SubmitFormStep{}}}
	rec := &ports.StoredWorkflow{ID: "wf", Workflow: workflow.New(form)}
	require.NoError(t, store.Save(ctx, rec))

	form.Entries[0] = workflow.AnswerQuestionStep{QuestionText: "Name", Value: "x"}

	loaded, err := store.Load(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, workflow.SubmitFormStep{}, loaded.Workflow.Steps[0].(workflow.FormStep).Entries[0])
}
