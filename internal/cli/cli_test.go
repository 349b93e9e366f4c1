package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/apptrail/internal/config"
	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/adapters/memory"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clinicFile = "../../pkg/adapters/mockapp/testdata/clinic.yaml"

func newEnv(t *testing.T, backend string) *Env {
	t.Helper()
	p := config.Default()
	p.Store = config.Store{Backend: backend, DSN: filepath.Join(t.TempDir(), "store")}
	return &Env{Profile: p, Logger: NewLogger(false, logging.FormatText)}
}

func TestLoadWorkflow(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "patients.trail")
	require.NoError(t, os.WriteFile(text, []byte("Select menu \"Patients\"\n"), 0o644))
	js := filepath.Join(dir, "patients.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"steps":[{"type":"command","value":"Patients"}]}`), 0o644))

	for _, path := range []string{text, js} {
		wf, err := LoadWorkflow(path)
		require.NoError(t, err, path)
		assert.Equal(t, workflow.New(workflow.CommandStep{Value: "Patients"}), wf)
	}

	bad := filepath.Join(dir, "bad.trail")
	require.NoError(t, os.WriteFile(bad, []byte("Dance wildly\n"), 0o644))
	_, err := LoadWorkflow(bad)
	assert.ErrorContains(t, err, "bad.trail")
}

func TestEnv_StoreBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{config.StoreMemory, config.StoreFile, config.StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			env := newEnv(t, backend)
			defer env.Close()

			store, err := env.Store(ctx)
			require.NoError(t, err)
			again, err := env.Store(ctx)
			require.NoError(t, err)
			assert.Same(t, store, again)

			ids, err := SaveAll(ctx, store, "found", []workflow.Workflow{
				workflow.New(workflow.CommandStep{Value: "Patients"}),
				workflow.New(workflow.CommandStep{Value: "Reports"}),
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"found-001", "found-002"}, ids)

			name, wf, err := ResolveWorkflow(ctx, env, "", "found-002")
			require.NoError(t, err)
			assert.Equal(t, "found-002", name)
			assert.Equal(t, workflow.New(workflow.CommandStep{Value: "Reports"}), wf)
		})
	}

	_, err := newEnv(t, "etcd").Store(ctx)
	assert.ErrorContains(t, err, "etcd")
}

func TestResolveWorkflow_Arguments(t *testing.T) {
	env := newEnv(t, config.StoreMemory)
	env.store = memory.NewStore()

	_, _, err := ResolveWorkflow(context.Background(), env, "", "")
	assert.Error(t, err)
	_, _, err = ResolveWorkflow(context.Background(), env, "a.trail", "a")
	assert.Error(t, err)
}

func TestEnv_MockChannelRunsWorkflow(t *testing.T) {
	env := newEnv(t, config.StoreMemory)

	ch, target, err := env.Channel(clinicFile)
	require.NoError(t, err)
	assert.Equal(t, "mock://clinic-app", target)
	assert.Equal(t, "demo", env.Profile.Session.Domain)

	sess := env.Session(ch)
	wf := workflow.New(workflow.CommandStep{Value: "Patients"}, workflow.EntitySelectStep{Value: "p-1"})
	require.NoError(t, env.Runner().Run(context.Background(), sess, wf))
	assert.Len(t, sess.Log(), 3)

	wfs, err := env.Discovery(env.Runner()).Discover(context.Background(), env.Session(ch))
	require.NoError(t, err)
	assert.Len(t, wfs, 3)
}

func TestEnv_RemoteChannelNeedsProfile(t *testing.T) {
	env := newEnv(t, config.StoreMemory)
	_, _, err := env.Channel("")
	assert.ErrorContains(t, err, "server")
}

func TestEnv_StoreMiddleware(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, config.StoreFile)
	env.Profile.Store.Mask = []string{"^name$"}
	env.Profile.Store.Key = make([]byte, 32)

	store, err := env.Store(ctx)
	require.NoError(t, err)
	_, err = SaveAll(ctx, store, "found", []workflow.Workflow{
		workflow.New(workflow.QueryStep{Inputs: workflow.QueryInputs{{Key: "name", Value: "bob"}}}),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(env.Profile.Store.DSN, "found-001.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "name")
	assert.Contains(t, string(raw), "__encrypted__")

	_, wf, err := ResolveWorkflow(ctx, env, "", "found-001")
	require.NoError(t, err)
	v, _ := wf.Steps[0].(workflow.QueryStep).Inputs.Get("name")
	assert.Equal(t, "***", v)

	bad := newEnv(t, config.StoreMemory)
	bad.Profile.Store.Key = []byte("short")
	_, err = bad.Store(ctx)
	assert.ErrorContains(t, err, config.EnvStoreKey)
}

func TestSignalContext_CancelKeepsNoSignal(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}

func TestSetup(t *testing.T) {
	t.Chdir(t.TempDir())
	env, err := Setup("", true, "json")
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, env.Profile.Store.Backend)

	_, err = Setup("", false, "xml")
	assert.Error(t, err)
}
