package sqlite

import (
	"strings"

	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/store/connector"
	_ "modernc.org/sqlite"
)

// Dialect implements SQL dialect for SQLite. Used for local dry runs and tests.
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect { return &Dialect{} }

func (s *Dialect) DriverName() string { return "sqlite" }

func (s *Dialect) Name() string { return "sqlite" }

// Placeholder returns SQLite-style placeholders (?)
func (s *Dialect) Placeholder(int) string { return "?" }

// QuoteIdent quotes the last identifier part; SQLite has no schemas beyond attached databases.
func (s *Dialect) QuoteIdent(ident string) string {
	parts := connector.SplitIdentifier(ident)
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func (s *Dialect) BuildExec(string, []connector.Param) (string, []any, error) {
	return "", nil, connector.ErrProceduresUnsupported
}

func (s *Dialect) MaxOpenConns() int { return constants.DefaultSQLiteMaxConns }
