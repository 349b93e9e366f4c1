package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// LoadWorkflow reads a workflow file. Files ending in .json hold the tagged
// JSON form; anything else is parsed as workflow text.
func LoadWorkflow(path string) (workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Workflow{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var wf workflow.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return workflow.Workflow{}, fmt.Errorf("%s: %w", path, err)
		}
		return wf, nil
	}
	wf, err := dsl.ParseString(string(data))
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// ResolveWorkflow loads the workflow named by a file argument or a store id.
// Exactly one of them must be set.
func ResolveWorkflow(ctx context.Context, env *Env, path, id string) (string, workflow.Workflow, error) {
	switch {
	case path != "" && id != "":
		return "", workflow.Workflow{}, errors.New("pass either a workflow file or --id, not both")
	case path != "":
		wf, err := LoadWorkflow(path)
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), wf, err
	case id != "":
		store, err := env.Store(ctx)
		if err != nil {
			return "", workflow.Workflow{}, err
		}
		rec, err := store.Load(ctx, id)
		if err != nil {
			return "", workflow.Workflow{}, err
		}
		name := rec.Name
		if name == "" {
			name = rec.ID
		}
		return name, rec.Workflow, nil
	}
	return "", workflow.Workflow{}, errors.New("a workflow file or --id is required")
}

// SaveAll stores wfs as <prefix>-001, <prefix>-002, ... and returns the ids.
func SaveAll(ctx context.Context, store ports.WorkflowStore, prefix string, wfs []workflow.Workflow) ([]string, error) {
	ids := make([]string, 0, len(wfs))
	now := time.Now().UTC()
	for i, wf := range wfs {
		id := fmt.Sprintf("%s-%03d", prefix, i+1)
		rec := &ports.StoredWorkflow{ID: id, Name: id, Workflow: wf, UpdatedAt: now}
		if err := store.Save(ctx, rec); err != nil {
			return ids, fmt.Errorf("save %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
