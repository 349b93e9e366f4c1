package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/apptrail/pkg/discovery"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpAdapter "github.com/aretw0/apptrail/pkg/adapters/http"
)

const sampleProfile = `
server: https://example.org/a/demo/formplayer
domain: demo
app_id: abc123
username: nurse@demo
restore_as: carol
auth:
  type: hmac
form_policy: no_submit
sync: true
store:
  backend: redis
  dsn: redis://localhost:6379/2
discovery:
  parallelism: 4
lock_ttl: 2m
`

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apptrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvHMACKey, "s3cret")
	p, err := Load(writeProfile(t, sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/a/demo/formplayer", p.Server)
	assert.Equal(t, "demo", p.Session.Domain)
	assert.Equal(t, "abc123", p.Session.AppID)
	assert.Equal(t, "nurse@demo", p.Session.Username)
	assert.Equal(t, "carol", p.Session.RestoreAs)
	assert.True(t, p.Sync)
	assert.Equal(t, runner.FormsNoSubmit, p.Policy())
	assert.Equal(t, StoreRedis, p.Store.Backend)
	assert.Equal(t, 4, p.Discovery.Parallelism)
	assert.Equal(t, discovery.DefaultMaxDepth, p.Discovery.MaxDepth)
	assert.Equal(t, 2*time.Minute, p.LockTTL)
	require.NoError(t, p.Validate())

	auth, err := p.Authenticator()
	require.NoError(t, err)
	assert.Equal(t, httpAdapter.HMACAuth{Key: []byte("s3cret")}, auth)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreFile, p.Store.Backend)
	assert.Equal(t, runner.FormsFull, p.Policy())
	assert.Equal(t, 1, p.Discovery.Parallelism)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(writeProfile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	p := Default()
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server, domain, app_id, username")

	p.Server, p.Session.Domain, p.Session.BuildID, p.Session.Username = "http://x", "d", "build", "u"
	assert.NoError(t, p.Validate())

	p.FormPolicy = "sometimes"
	assert.Error(t, p.Validate())
}

func TestAuthenticator(t *testing.T) {
	p := Default()
	p.Session.Username = "nurse@demo"

	auth, err := p.Authenticator()
	require.NoError(t, err)
	assert.Nil(t, auth)

	p.Auth.Type = "basic"
	_, err = p.Authenticator()
	assert.ErrorContains(t, err, EnvPassword)

	p.Auth.Password = "pw"
	auth, err = p.Authenticator()
	require.NoError(t, err)
	assert.Equal(t, httpAdapter.BasicAuth{Username: "nurse@demo", Password: "pw"}, auth)

	p.Auth.Type = "token"
	_, err = p.Authenticator()
	assert.ErrorContains(t, err, EnvToken)

	p.Auth.Type = "kerberos"
	_, err = p.Authenticator()
	assert.Error(t, err)
}

func TestLoad_StoreKey(t *testing.T) {
	t.Setenv(EnvStoreKey, base64.StdEncoding.EncodeToString(make([]byte, 32)))
	p, err := Load(writeProfile(t, "store:\n  backend: file\n  mask: [\"(?i)phone\"]\n"))
	require.NoError(t, err)
	assert.Len(t, p.Store.Key, 32)
	assert.Equal(t, []string{"(?i)phone"}, p.Store.Mask)
	assert.NoError(t, p.Store.Validate())

	t.Setenv(EnvStoreKey, "not base64!")
	p, err = Load(writeProfile(t, "store:\n  mask: [\"(\"]\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, p.Store.Validate(), EnvStoreKey)

	p.Store.Key = nil
	assert.ErrorContains(t, p.Store.Validate(), "store mask")
}
