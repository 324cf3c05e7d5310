package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/common"
)

// Method authenticates requests issued by a resty client.
// Apply is called once per run, before the first request.
type Method interface {
	Name() string
	Apply(ctx context.Context, c *resty.Client) error
}

// Factory builds a Method from a loosely-typed spec map.
type Factory func(spec map[string]interface{}) (Method, error)

// DefaultType is used when the config does not name an auth provider.
const DefaultType = "ntlm"

var providers = map[string]Factory{}

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register registers an auth provider factory under a type key (e.g., "ntlm", "basic").
func Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	providers[key] = f
}

// Registered reports whether a provider type is known.
func Registered(typ string) bool {
	_, ok := providers[normalizeKey(typ)]
	return ok
}

// New builds the Method registered under typ.
func New(typ string, spec map[string]interface{}) (Method, error) {
	key := normalizeKey(typ)
	if key == "" {
		key = DefaultType
	}
	f, ok := providers[key]
	if !ok {
		return nil, errors.New("auth: unsupported provider type: " + typ)
	}
	if spec == nil {
		spec = map[string]interface{}{}
	}
	return f(spec)
}

// Config selects the provider and carries its provider-specific settings.
type Config struct {
	Type   string                 `mapstructure:"type" yaml:"type"`
	Config map[string]interface{} `mapstructure:"config" yaml:"config"`
}

// WithCredentials returns a copy of spec where username/password default to the
// orchestrator-supplied account. Explicit values in the spec win.
func WithCredentials(spec map[string]interface{}, username, password string) map[string]interface{} {
	out := make(map[string]interface{}, len(spec)+2)
	for k, v := range spec {
		out[k] = v
	}
	if s, _ := out["username"].(string); strings.TrimSpace(s) == "" {
		out["username"] = username
	}
	if s, _ := out["password"].(string); strings.TrimSpace(s) == "" {
		out["password"] = password
	}
	return out
}

// Configure resolves the configured provider and applies it to c.
func Configure(ctx context.Context, c *resty.Client, cfg Config, username, password string) (Method, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := New(cfg.Type, WithCredentials(cfg.Config, username, password))
	if err != nil {
		return nil, err
	}
	if err := m.Apply(ctx, c); err != nil {
		return nil, err
	}
	common.GetLogger().WithComponent("auth").Debug("auth method applied", "type", m.Name())
	return m, nil
}
