package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/apptrail/pkg/adapters/redis"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/workflow"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunWorkflowStoreContract(t, store)
}

func TestRedisStore_Keys(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Save(ctx, &ports.StoredWorkflow{
		ID:       "register",
		Workflow: workflow.New(workflow.CommandStep{Value: "Register Patient"}),
	}))

	assert.True(t, mr.Exists("test:workflow:register"))
	members, err := mr.ZMembers("test:workflows")
	require.NoError(t, err)
	assert.Equal(t, []string{"register"}, members)

	require.NoError(t, store.Delete(ctx, "register"))
	assert.False(t, mr.Exists("test:workflow:register"))
}

func TestNewFromURL(t *testing.T) {
	mr, _ := newClient(t)

	store, err := redis.NewFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, store.Ping(context.Background()))

	_, err = redis.NewFromURL("http://nope")
	assert.Error(t, err)
}
