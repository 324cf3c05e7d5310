// Package termsync copies GetOrganized taxonomy and term data into SQL. The
// cmd/termsync binary is the usual entry point; this package lets another Go
// program run the same job with its own orchestrator connection.
package termsync

import (
	"context"

	"github.com/loykin/termsync/internal/auth"
	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/orchestrator"
	"github.com/loykin/termsync/internal/process"
	"github.com/loykin/termsync/internal/store"
)

// Re-export commonly used types for public API

// Connection supplies credentials, constants and run arguments.
type Connection = orchestrator.Connection

// Credential is a username/password pair.
type Credential = orchestrator.Credential

// LocalConnection is a map-backed Connection.
type LocalConnection = orchestrator.Local

// NewLocalConnection returns a LocalConnection for the given JSON run arguments.
func NewLocalConnection(arguments string) *LocalConnection { return orchestrator.NewLocal(arguments) }

// Options configures HTTP, auth, retries and metrics of a run.
type Options = process.Deps

// PushConfig points at a Prometheus Pushgateway.
type PushConfig = process.PushConfig

// Sentinel errors
var (
	ErrMissingCredential     = orchestrator.ErrMissingCredential
	ErrUnknownProcess        = process.ErrUnknownProcess
	ErrProceduresUnsupported = store.ErrProceduresUnsupported
)

// Run executes one job described by conn.
func Run(ctx context.Context, conn Connection, opts Options) error {
	return process.Process(ctx, conn, opts)
}

// AuthMethod Plugin-style provider interface and registration
type AuthMethod = auth.Method

type AuthFactory = auth.Factory

// RegisterAuthProvider exposes custom auth provider registration for library users.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Register(typ, f) }

// Logger re-exports

type Logger = common.Logger

type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger { return common.NewLogger(level) }

func NewJSONLogger(level LogLevel) *Logger { return common.NewJSONLogger(level) }

func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// SetDefaultLogger replaces the logger used by every package.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

// EnableMasking toggles masking of passwords, connection strings and digests in logs.
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }
