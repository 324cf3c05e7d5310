// Package orchestrator is the boundary to the job scheduler that starts termsync:
// it hands out credentials, constants and the JSON run arguments, and receives
// trace lines.
package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
)

// ErrMissingCredential is returned when a required credential or constant is absent.
var ErrMissingCredential = errors.New("orchestrator: missing credential or constant")

// Credential is a username/password pair stored by the orchestrator.
type Credential struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Connection is what a run needs from the orchestrator.
type Connection interface {
	ProcessArguments() string
	GetCredential(name string) (Credential, error)
	GetConstant(name string) (string, error)
	LogTrace(msg string)
}

// Credentials is the per-run secret bundle. It is read-only once loaded.
type Credentials struct {
	APIUsername   string
	APIPassword   string
	SQLConnString string
}

// LogValue keeps secrets out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_username", c.APIUsername),
		slog.String("api_password", common.MaskedValue),
		slog.String("sql_conn_string", common.MaskedValue),
	)
}

// GetCredentialsAndConstants loads the GO API account and the database connection
// string. Any missing or empty value yields ErrMissingCredential.
func GetCredentialsAndConstants(conn Connection) (Credentials, error) {
	conn.LogTrace("Retrieve credentials and constants.")

	cred, err := conn.GetCredential(constants.CredentialGoAPI)
	if err != nil {
		return Credentials{}, err
	}
	if strings.TrimSpace(cred.Username) == "" {
		return Credentials{}, fmt.Errorf("%w: credential %q has no username", ErrMissingCredential, constants.CredentialGoAPI)
	}
	dsn, err := conn.GetConstant(constants.ConstantDbConnectionString)
	if err != nil {
		return Credentials{}, err
	}
	if strings.TrimSpace(dsn) == "" {
		return Credentials{}, fmt.Errorf("%w: constant %q is empty", ErrMissingCredential, constants.ConstantDbConnectionString)
	}
	return Credentials{APIUsername: cred.Username, APIPassword: cred.Password, SQLConnString: dsn}, nil
}
