package store

import (
	"fmt"
	"strings"

	"github.com/loykin/termsync/internal/store/connector"
	"github.com/loykin/termsync/internal/store/mssql"
	"github.com/loykin/termsync/internal/store/postgresql"
	"github.com/loykin/termsync/internal/store/sqlite"
)

// Resolve picks the dialect for a connection string and returns the DSN the
// matching driver expects.
func Resolve(connString string) (connector.Dialect, string, error) {
	cs := strings.TrimSpace(connString)
	if cs == "" {
		return nil, "", fmt.Errorf("store: empty connection string")
	}
	lower := strings.ToLower(cs)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgresql.NewDialect(), cs, nil
	case strings.HasPrefix(lower, "sqlite:"):
		return sqlite.NewDialect(), strings.TrimPrefix(cs[len("sqlite:"):], "//"), nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return sqlite.NewDialect(), cs, nil
	case strings.HasPrefix(lower, "sqlserver://"), strings.HasPrefix(lower, "odbc:"):
		return mssql.NewDialect(), cs, nil
	}
	if hasKey(cs, "driver") {
		return mssql.NewDialect(), odbcDSN(cs), nil
	}
	return mssql.NewDialect(), cs, nil
}

func hasKey(cs, key string) bool {
	for _, kv := range splitPairs(cs) {
		k, _, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return true
		}
	}
	return false
}

// odbcKeys maps ODBC keyword names to the ones go-mssqldb understands.
var odbcKeys = map[string]string{
	"uid": "user id",
	"pwd": "password",
}

// odbcDSN converts "Driver={ODBC Driver 17 for SQL Server};Server=...;" into the
// "odbc:" form go-mssqldb parses. The Driver pair only selects the native client and is dropped.
// Braced values are kept verbatim.
func odbcDSN(cs string) string {
	var kept []string
	for _, kv := range splitPairs(cs) {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		name := strings.ToLower(strings.TrimSpace(k))
		if name == "driver" {
			continue
		}
		if mapped, found := odbcKeys[name]; found && ok {
			kv = mapped + "=" + v
		}
		kept = append(kept, kv)
	}
	return "odbc:" + strings.Join(kept, ";")
}

// splitPairs splits on semicolons outside {} braces. "}}" inside braces is an escaped brace.
func splitPairs(cs string) []string {
	var (
		parts  []string
		start  int
		braced bool
	)
	for i := 0; i < len(cs); i++ {
		switch c := cs[i]; {
		case c == '{' && !braced:
			braced = true
		case c == '}' && braced:
			if i+1 < len(cs) && cs[i+1] == '}' {
				i++
				continue
			}
			braced = false
		case c == ';' && !braced:
			parts = append(parts, cs[start:i])
			start = i + 1
		}
	}
	return append(parts, cs[start:])
}
