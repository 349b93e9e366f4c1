package ports

import (
	"context"
	"time"

	"github.com/aretw0/apptrail/pkg/workflow"
)

// StoredWorkflow is a workflow saved under a stable id.
type StoredWorkflow struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Workflow  workflow.Workflow `json:"workflow"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// WorkflowStore persists workflows so they can be replayed later.
type WorkflowStore interface {
	// Save creates or replaces the workflow with the record's ID.
	Save(ctx context.Context, rec *StoredWorkflow) error

	// Load retrieves a workflow by id.
	// Returns domain.ErrWorkflowNotFound if it does not exist.
	Load(ctx context.Context, id string) (*StoredWorkflow, error)

	// Delete removes a workflow. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored workflows in ascending order.
	List(ctx context.Context) ([]string, error)
}
