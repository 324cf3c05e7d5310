package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/retry"
	"github.com/loykin/termsync/internal/store/connector"
)

// Row is one record keyed by column name.
type Row = map[string]any

// Param is re-exported so callers need not import the connector package.
type Param = connector.Param

// ErrProceduresUnsupported is returned when the backing driver has no stored procedures.
var ErrProceduresUnsupported = connector.ErrProceduresUnsupported

// ErrClosed is returned for operations on a closed handler.
var ErrClosed = errors.New("store: handler is closed")

// Handler owns one database connection pool.
type Handler struct {
	db      *sql.DB
	dialect connector.Dialect
	retry   *retry.Config
	logger  *common.Logger

	mu     sync.Mutex
	closed bool
}

// Option customizes a Handler.
type Option func(*Handler)

// WithRetryConfig overrides the retry policy for writes.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(h *Handler) {
		if cfg != nil {
			h.retry = cfg
		}
	}
}

// WithLogger overrides the handler logger.
func WithLogger(l *common.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Open connects using the driver implied by connString and verifies the connection.
func Open(ctx context.Context, connString string, opts ...Option) (*Handler, error) {
	dialect, dsn, err := Resolve(connString)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect.Name(), err)
	}
	db.SetMaxOpenConns(dialect.MaxOpenConns())
	db.SetMaxIdleConns(min(constants.DefaultMaxIdleConns, dialect.MaxOpenConns()))
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)

	h := New(db, dialect, opts...)
	if err := retry.WithRetry(ctx, h.retry, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", dialect.Name(), err)
	}
	h.logger.Debug("database connection established")
	return h, nil
}

// New wraps an existing pool. The handler takes ownership of db.
func New(db *sql.DB, dialect connector.Dialect, opts ...Option) *Handler {
	h := &Handler{
		db:      db,
		dialect: dialect,
		retry:   retry.DefaultRetryConfig(),
		logger:  common.GetLogger(),
	}
	for _, o := range opts {
		o(h)
	}
	h.logger = h.logger.WithStore(dialect.Name())
	return h
}

// DB exposes the pool for callers needing raw access.
func (h *Handler) DB() *sql.DB { return h.db }

// Dialect returns the active dialect.
func (h *Handler) Dialect() connector.Dialect { return h.dialect }

// Close releases the pool. Calling it more than once is a no-op.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}

func (h *Handler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// FetchRecords runs a query and returns each row keyed by column name.
// []byte values are returned as strings.
func (h *Handler) FetchRecords(ctx context.Context, query string, args ...any) ([]Row, error) {
	if h.isClosed() {
		return nil, ErrClosed
	}
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = vals[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BuildExec returns the statement text used to call a stored procedure.
func (h *Handler) BuildExec(procedure string, params []Param) (string, error) {
	stmt, _, err := h.dialect.BuildExec(procedure, params)
	return stmt, err
}

// ExecuteStoredProcedure calls procedure with params bound as arguments.
func (h *Handler) ExecuteStoredProcedure(ctx context.Context, procedure string, params []Param) error {
	if h.isClosed() {
		return ErrClosed
	}
	stmt, args, err := h.dialect.BuildExec(procedure, params)
	if err != nil {
		return err
	}
	_, err = retry.WithRetryExec(ctx, h.retry, func() (sql.Result, error) {
		return h.db.ExecContext(ctx, stmt, args...)
	})
	if err != nil {
		return fmt.Errorf("store: exec %s: %w", procedure, err)
	}
	h.logger.Debug("stored procedure executed", "procedure", procedure, "params", len(params))
	return nil
}

// InsertRows inserts rows into table in a single transaction and returns the
// number of rows written. When columns is empty the sorted union of row keys is
// used. Missing keys insert NULL; nested values are stored as JSON text.
func (h *Handler) InsertRows(ctx context.Context, table string, columns []string, rows []Row) (int, error) {
	if h.isClosed() {
		return 0, ErrClosed
	}
	if err := connector.ValidateIdentifier(table); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		columns = unionKeys(rows)
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		if err := connector.ValidateIdentifier(c); err != nil || strings.Contains(c, ".") {
			return 0, fmt.Errorf("store: invalid column %q", c)
		}
		quoted[i] = h.dialect.QuoteIdent(c)
		marks[i] = h.dialect.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		h.dialect.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	err := retry.WithRetry(ctx, h.retry, func() error {
		return h.insertTx(ctx, stmt, columns, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("store: insert into %s: %w", table, err)
	}
	h.logger.Info("rows inserted", "table", table, "rows", len(rows))
	return len(rows), nil
}

func (h *Handler) insertTx(ctx context.Context, stmt string, columns []string, rows []Row) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer func() { _ = ps.Close() }()

	args := make([]any, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			v, err := columnValue(r[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			args[i] = v
		}
		if _, err := ps.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func columnValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

func unionKeys(rows []Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
