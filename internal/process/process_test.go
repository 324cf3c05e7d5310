package process

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/orchestrator"
	"github.com/loykin/termsync/internal/retry"
	"github.com/loykin/termsync/internal/store"
	"github.com/loykin/termsync/internal/taxonomy"
	"github.com/loykin/termsync/internal/term"
	"github.com/loykin/termsync/internal/testutil"
)

const termSet = "5c2d1f6e-8a8b-4a5e-9a43-1f6d2b7c9e10"

type fakeDB struct{ closed bool }

func (f *fakeDB) ExecuteStoredProcedure(context.Context, string, []store.Param) error { return nil }
func (f *fakeDB) InsertRows(context.Context, string, []string, []store.Row) (int, error) {
	return 0, nil
}
func (f *fakeDB) Close() error { f.closed = true; return nil }

type traceConn struct {
	*orchestrator.Local
	mu     sync.Mutex
	traces []string
}

func (c *traceConn) LogTrace(msg string) {
	c.mu.Lock()
	c.traces = append(c.traces, msg)
	c.mu.Unlock()
}

func newConn(args string) *traceConn {
	l := orchestrator.NewLocal(args)
	l.Credentials[constants.CredentialGoAPI] = orchestrator.Credential{Username: "svc", Password: "pw"}
	l.Constants[constants.ConstantDbConnectionString] = "server=sql01"
	return &traceConn{Local: l}
}

type recorder struct {
	opened, clients, taxonomy, term int
	db                              *fakeDB
	taxOpts                         taxonomy.Options
	termOpts                        term.Options
}

func (r *recorder) deps() Deps {
	r.db = &fakeDB{}
	return Deps{
		OpenDB: func(context.Context, string) (Database, error) {
			r.opened++
			return r.db, nil
		},
		NewClient: func(context.Context, orchestrator.Credentials) (*goapi.Client, error) {
			r.clients++
			return goapi.NewClient(resty.New()), nil
		},
		RunTaxonomy: func(_ context.Context, _ *goapi.Client, _ taxonomy.Writer, o taxonomy.Options) (taxonomy.Stats, error) {
			r.taxonomy++
			r.taxOpts = o
			return taxonomy.Stats{}, nil
		},
		RunTerm: func(_ context.Context, _ *goapi.Client, _ term.Executor, o term.Options) (term.Stats, error) {
			r.term++
			r.termOpts = o
			return term.Stats{}, nil
		},
	}
}

func TestProcess_DispatchesTaxonomyOnly(t *testing.T) {
	r := &recorder{}
	conn := newConn(`{"process":"taxonomy","caseType":"GEO","viewId":"v1","baseUrl":"https://go.example.dk"}`)
	if err := Process(context.Background(), conn, r.deps()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if r.taxonomy != 1 || r.term != 0 {
		t.Fatalf("taxonomy=%d term=%d", r.taxonomy, r.term)
	}
	if r.taxOpts.CaseType != "GEO" || r.taxOpts.ViewID != "v1" || r.taxOpts.BaseURL != "https://go.example.dk" {
		t.Errorf("options = %+v", r.taxOpts)
	}
	if !r.db.closed {
		t.Error("database not closed")
	}
	want := []string{"Running process.", "Retrieve credentials and constants.", "Pull taxonomy data from GO.", "Taxonomy data was successfully pulled from GO."}
	if len(conn.traces) != len(want) {
		t.Fatalf("traces = %v", conn.traces)
	}
	for i := range want {
		if conn.traces[i] != want[i] {
			t.Errorf("trace %d = %q, want %q", i, conn.traces[i], want[i])
		}
	}
}

func TestProcess_DispatchesTermOnly(t *testing.T) {
	r := &recorder{}
	conn := newConn(`{"process":"term","caseType":"GEO","baseUrl":"https://go.example.dk","startTermId":"","storedProcedure":"GO_Terms_Insert","termSetUuid":"` + termSet + `"}`)
	if err := Process(context.Background(), conn, r.deps()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if r.taxonomy != 0 || r.term != 1 {
		t.Fatalf("taxonomy=%d term=%d", r.taxonomy, r.term)
	}
	if r.termOpts.TermSetUUID != termSet || r.termOpts.StoredProcedure != "GO_Terms_Insert" || r.termOpts.PageLimit != 2000 {
		t.Errorf("options = %+v", r.termOpts)
	}
}

func TestProcess_UnknownRunsNothing(t *testing.T) {
	r := &recorder{}
	err := Process(context.Background(), newConn(`{"process":"cleanup"}`), r.deps())
	if !errors.Is(err, ErrUnknownProcess) {
		t.Fatalf("err = %v, want ErrUnknownProcess", err)
	}
	if r.taxonomy+r.term+r.opened+r.clients != 0 {
		t.Fatalf("unexpected work: %+v", r)
	}
}

func TestProcess_MissingCredentialsTouchNothing(t *testing.T) {
	cases := map[string]func(*orchestrator.Local){
		"credential": func(l *orchestrator.Local) { delete(l.Credentials, constants.CredentialGoAPI) },
		"constant":   func(l *orchestrator.Local) { delete(l.Constants, constants.ConstantDbConnectionString) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := &recorder{}
			conn := newConn(`{"process":"taxonomy","caseType":"GEO","viewId":"v1","baseUrl":"https://go.example.dk"}`)
			mutate(conn.Local)
			err := Process(context.Background(), conn, r.deps())
			if !errors.Is(err, orchestrator.ErrMissingCredential) {
				t.Fatalf("err = %v", err)
			}
			if r.opened+r.clients+r.taxonomy+r.term != 0 {
				t.Fatalf("network or database touched: %+v", r)
			}
		})
	}
}

func TestProcess_InvalidArgumentsTouchNothing(t *testing.T) {
	r := &recorder{}
	err := Process(context.Background(), newConn(`{"process":"term","caseType":"GEO","baseUrl":"u","storedProcedure":"p","termSetUuid":"not-a-uuid"}`), r.deps())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if r.opened+r.clients != 0 {
		t.Fatalf("network or database touched: %+v", r)
	}
}

func TestProcess_SubProcessErrorIsReturned(t *testing.T) {
	r := &recorder{}
	deps := r.deps()
	boom := errors.New("boom")
	deps.RunTaxonomy = func(context.Context, *goapi.Client, taxonomy.Writer, taxonomy.Options) (taxonomy.Stats, error) {
		return taxonomy.Stats{}, boom
	}
	conn := newConn(`{"process":"taxonomy","caseType":"GEO","viewId":"v1","baseUrl":"u"}`)
	if err := Process(context.Background(), conn, deps); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !r.db.closed {
		t.Error("database not closed after failure")
	}
	for _, tr := range conn.traces {
		if tr == "Taxonomy data was successfully pulled from GO." {
			t.Fatal("success trace logged after failure")
		}
	}
}

func TestProcess_TaxonomyEndToEnd(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	f.ListPages = [][]map[string]any{
		{{"ID": "1", "Title": "Aarhus"}, {"ID": "2", "Title": "Odense"}},
		{{"ID": "3", "Title": "Aalborg"}},
	}

	ctx := context.Background()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "rpa.db")
	setup, err := store.Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := setup.DB().ExecContext(ctx, `CREATE TABLE taxonomy_list (ID TEXT, Title TEXT, IdForTermStore TEXT, IdForTerm TEXT, IdForTermSet TEXT, Path TEXT, CaseType TEXT)`); err != nil {
		t.Fatal(err)
	}
	_ = setup.Close()

	conn := newConn(`{"process":"taxonomy","caseType":"GEO","viewId":"v1","baseUrl":"` + f.URL() + `","table":"taxonomy_list"}`)
	conn.Constants[constants.ConstantDbConnectionString] = dsn
	if err := Process(ctx, conn, Deps{Retry: retry.NoRetry()}); err != nil {
		t.Fatalf("process: %v", err)
	}

	check, err := store.Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = check.Close() }()
	rows, err := check.FetchRecords(ctx, `SELECT ID, CaseType FROM taxonomy_list ORDER BY ID`)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2]["ID"] != "3" || rows[0]["CaseType"] != "GEO" {
		t.Fatalf("rows = %#v", rows)
	}
}
