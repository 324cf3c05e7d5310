package orchestrator

import (
	"fmt"

	"github.com/loykin/termsync/internal/common"
)

// Local is a Connection backed by configuration. Constants are layered:
// Overrides (e.g. from command-line flags) win over Constants from the config file.
type Local struct {
	Arguments   string
	Credentials map[string]Credential
	Constants   map[string]string
	Overrides   map[string]string

	logger *common.Logger
}

// NewLocal returns a Local with all maps initialized.
func NewLocal(arguments string) *Local {
	return &Local{
		Arguments:   arguments,
		Credentials: map[string]Credential{},
		Constants:   map[string]string{},
		Overrides:   map[string]string{},
	}
}

func (l *Local) ProcessArguments() string { return l.Arguments }

func (l *Local) GetCredential(name string) (Credential, error) {
	if l.Credentials != nil {
		if c, ok := l.Credentials[name]; ok {
			return c, nil
		}
	}
	return Credential{}, fmt.Errorf("%w: credential %q", ErrMissingCredential, name)
}

// GetConstant searches Overrides first, then Constants.
func (l *Local) GetConstant(name string) (string, error) {
	if v, ok := l.Lookup(name); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: constant %q", ErrMissingCredential, name)
}

// Lookup reports a constant without treating absence as an error.
func (l *Local) Lookup(name string) (string, bool) {
	if l.Overrides != nil {
		if v, ok := l.Overrides[name]; ok {
			return v, true
		}
	}
	if l.Constants != nil {
		if v, ok := l.Constants[name]; ok {
			return v, true
		}
	}
	return "", false
}

func (l *Local) LogTrace(msg string) {
	lg := l.logger
	if lg == nil {
		lg = common.GetLogger().WithComponent("orchestrator")
	}
	lg.Info(msg)
}

// SetLogger routes trace lines to lg.
func (l *Local) SetLogger(lg *common.Logger) { l.logger = lg }
