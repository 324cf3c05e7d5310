package connector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrProceduresUnsupported is returned by dialects without stored procedures.
var ErrProceduresUnsupported = errors.New("store: stored procedures are not supported by this driver")

// Param is one named stored procedure argument. Order is preserved for
// dialects that bind positionally.
type Param struct {
	Name  string
	Value any
}

// Dialect captures the SQL differences between the supported servers.
type Dialect interface {
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Name is used in logs.
	Name() string
	// Placeholder returns the bind marker for the 1-based argument index.
	Placeholder(index int) string
	// QuoteIdent quotes a validated, possibly schema-qualified identifier.
	QuoteIdent(ident string) string
	// BuildExec returns the statement and bind arguments that call a stored procedure.
	BuildExec(procedure string, params []Param) (string, []any, error)
	// MaxOpenConns bounds the pool.
	MaxOpenConns() int
}

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#@]*$`)

// ValidateIdentifier accepts "name" or "schema.name" made of plain identifier parts,
// optionally bracketed as in [rpa].[Proc].
func ValidateIdentifier(ident string) error {
	if strings.TrimSpace(ident) == "" {
		return errors.New("store: empty identifier")
	}
	parts := strings.Split(ident, ".")
	if len(parts) > 3 {
		return fmt.Errorf("store: invalid identifier %q", ident)
	}
	for _, p := range parts {
		p = strings.TrimSuffix(strings.TrimPrefix(p, "["), "]")
		if !identPart.MatchString(p) {
			return fmt.Errorf("store: invalid identifier %q", ident)
		}
	}
	return nil
}

// SplitIdentifier returns the unbracketed parts of a validated identifier.
func SplitIdentifier(ident string) []string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(strings.TrimPrefix(p, "["), "]")
	}
	return parts
}

// Qualify prefixes name with schema unless it is already schema-qualified.
func Qualify(name, schema string) string {
	name = strings.TrimSpace(name)
	if name == "" || schema == "" || strings.Contains(name, ".") {
		return name
	}
	return schema + "." + name
}
