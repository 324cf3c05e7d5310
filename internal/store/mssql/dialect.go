package mssql

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/store/connector"
	_ "github.com/microsoft/go-mssqldb"
)

// Dialect implements SQL dialect for SQL Server
type Dialect struct{}

// NewDialect creates a new SQL Server dialect
func NewDialect() *Dialect { return &Dialect{} }

func (d *Dialect) DriverName() string { return "sqlserver" }

func (d *Dialect) Name() string { return "mssql" }

// Placeholder returns SQL Server ordinal markers (@p1, @p2, ...)
func (d *Dialect) Placeholder(index int) string { return fmt.Sprintf("@p%d", index) }

// QuoteIdent brackets each identifier part.
func (d *Dialect) QuoteIdent(ident string) string {
	parts := connector.SplitIdentifier(ident)
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

// BuildExec renders "EXEC schema.proc @Name = @Name, ..." with each value bound as a named argument.
func (d *Dialect) BuildExec(procedure string, params []connector.Param) (string, []any, error) {
	if err := connector.ValidateIdentifier(procedure); err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("EXEC ")
	b.WriteString(procedure)
	args := make([]any, 0, len(params))
	for i, p := range params {
		if err := connector.ValidateIdentifier(p.Name); err != nil || strings.Contains(p.Name, ".") {
			return "", nil, fmt.Errorf("store: invalid parameter name %q", p.Name)
		}
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@%s = @%s", p.Name, p.Name)
		args = append(args, sql.Named(p.Name, p.Value))
	}
	return b.String(), args, nil
}

func (d *Dialect) MaxOpenConns() int { return constants.DefaultMaxOpenConns }
