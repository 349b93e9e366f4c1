// Package config loads the run profile shared by every apptrail command.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/apptrail/pkg/discovery"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"
	"gopkg.in/yaml.v3"

	httpAdapter "github.com/aretw0/apptrail/pkg/adapters/http"
)

// Secrets are read from the environment, never from the profile file.
const (
	EnvPassword = "APPTRAIL_PASSWORD"
	EnvToken    = "APPTRAIL_TOKEN"
	EnvHMACKey  = "APPTRAIL_HMAC_KEY"
	// EnvStoreKey is a base64 AES-256 key that enables encryption of stored workflows.
	EnvStoreKey = "APPTRAIL_STORE_KEY"
)

// DefaultFile is the profile looked up when no path is given.
const DefaultFile = "apptrail.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Profile describes the application under test and how to reach it.
type Profile struct {
	Server  string         `yaml:"server"`
	Session session.Config `yaml:",inline"`

	Auth       Auth          `yaml:"auth"`
	FormPolicy string        `yaml:"form_policy"`
	Sync       bool          `yaml:"sync"`
	Store      Store         `yaml:"store"`
	Discovery  Discovery     `yaml:"discovery"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

// Auth selects how requests are authenticated: "", "basic", "token" or "hmac".
type Auth struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	Token    string `yaml:"-"`
	HMACKey  string `yaml:"-"`
}

// Store selects the workflow store backend.
type Store struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
	// Mask lists patterns of question captions, ids and search keys whose
	// values are masked before a workflow is stored.
	Mask []string `yaml:"mask"`
	Key  []byte   `yaml:"-"`
}

// Discovery bounds workflow discovery.
type Discovery struct {
	Parallelism int `yaml:"parallelism"`
	MaxDepth    int `yaml:"max_depth"`
}

// Default returns a profile with every default applied.
func Default() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

// Load reads the profile at path. A missing file at DefaultFile is not an
// error; the defaults are returned instead.
func Load(path string) (*Profile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	p := &Profile{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("failed to read profile: %w", err)
	default:
		// YAML is a superset of JSON, so both formats decode here.
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
		}
	}

	p.applyEnv()
	p.applyDefaults()
	return p, nil
}

func (p *Profile) applyEnv() {
	if v := os.Getenv(EnvPassword); v != "" {
		p.Auth.Password = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		p.Auth.Token = v
	}
	if v := os.Getenv(EnvHMACKey); v != "" {
		p.Auth.HMACKey = v
	}
	if v := os.Getenv(EnvStoreKey); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			// Validate reports the bad key.
			key = []byte{}
		}
		p.Store.Key = key
	}
}

func (p *Profile) applyDefaults() {
	if p.FormPolicy == "" {
		p.FormPolicy = string(runner.FormsFull)
	}
	if p.Store.Backend == "" {
		p.Store.Backend = StoreFile
	}
	if p.Discovery.Parallelism < 1 {
		p.Discovery.Parallelism = 1
	}
	if p.Discovery.MaxDepth < 1 {
		p.Discovery.MaxDepth = discovery.DefaultMaxDepth
	}
	if p.LockTTL <= 0 {
		p.LockTTL = session.DefaultLockTTL
	}
}

// Validate checks the fields needed to talk to a remote application.
func (p *Profile) Validate() error {
	var missing []string
	if p.Server == "" {
		missing = append(missing, "server")
	}
	if p.Session.Domain == "" {
		missing = append(missing, "domain")
	}
	if p.Session.AppID == "" && p.Session.BuildID == "" {
		missing = append(missing, "app_id")
	}
	if p.Session.Username == "" {
		missing = append(missing, "username")
	}
	if len(missing) > 0 {
		return fmt.Errorf("profile is missing %s", strings.Join(missing, ", "))
	}
	if _, err := runner.ParseFormPolicy(p.FormPolicy); err != nil {
		return err
	}
	if err := p.Store.Validate(); err != nil {
		return err
	}
	_, err := p.Authenticator()
	return err
}

// Validate checks the store encryption key, when one was given.
func (s Store) Validate() error {
	if s.Key != nil && len(s.Key) != 32 {
		return fmt.Errorf("%s must be a base64 encoded 32 byte key", EnvStoreKey)
	}
	for _, pattern := range s.Mask {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("store mask %q: %w", pattern, err)
		}
	}
	return nil
}

// Policy returns the parsed form policy.
func (p *Profile) Policy() runner.FormPolicy {
	policy, err := runner.ParseFormPolicy(p.FormPolicy)
	if err != nil {
		return runner.FormsFull
	}
	return policy
}

// Authenticator builds the request authenticator, or nil for none.
func (p *Profile) Authenticator() (httpAdapter.Authenticator, error) {
	switch strings.ToLower(p.Auth.Type) {
	case "", "none":
		return nil, nil
	case "basic":
		user := p.Auth.Username
		if user == "" {
			user = p.Session.Username
		}
		if p.Auth.Password == "" {
			return nil, fmt.Errorf("basic auth needs %s", EnvPassword)
		}
		return httpAdapter.BasicAuth{Username: user, Password: p.Auth.Password}, nil
	case "token":
		if p.Auth.Token == "" {
			return nil, fmt.Errorf("token auth needs %s", EnvToken)
		}
		return httpAdapter.BearerToken{Token: p.Auth.Token}, nil
	case "hmac":
		if p.Auth.HMACKey == "" {
			return nil, fmt.Errorf("hmac auth needs %s", EnvHMACKey)
		}
		return httpAdapter.HMACAuth{Key: []byte(p.Auth.HMACKey)}, nil
	}
	return nil, fmt.Errorf("unknown auth type %q (want basic, token or hmac)", p.Auth.Type)
}
