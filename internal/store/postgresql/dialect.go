package postgresql

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/store/connector"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect { return &Dialect{} }

func (p *Dialect) DriverName() string { return "pgx" }

func (p *Dialect) Name() string { return "postgresql" }

// Placeholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }

func (p *Dialect) QuoteIdent(ident string) string {
	parts := connector.SplitIdentifier(ident)
	for i, s := range parts {
		parts[i] = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// BuildExec renders "CALL schema.proc($1, $2, ...)". Parameters bind positionally,
// so their order must match the procedure signature.
func (p *Dialect) BuildExec(procedure string, params []connector.Param) (string, []any, error) {
	if err := connector.ValidateIdentifier(procedure); err != nil {
		return "", nil, err
	}
	marks := make([]string, len(params))
	args := make([]any, len(params))
	for i, prm := range params {
		marks[i] = p.Placeholder(i + 1)
		args[i] = prm.Value
	}
	return fmt.Sprintf("CALL %s(%s)", procedure, strings.Join(marks, ", ")), args, nil
}

func (p *Dialect) MaxOpenConns() int { return constants.DefaultMaxOpenConns }
