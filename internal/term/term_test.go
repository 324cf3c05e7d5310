package term

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/retry"
	"github.com/loykin/termsync/internal/store"
	"github.com/loykin/termsync/internal/store/mssql"
	"github.com/loykin/termsync/internal/testutil"
)

const termSet = "5c2d1f6e-8a8b-4a5e-9a43-1f6d2b7c9e10"

type recordingExecutor struct {
	mu     sync.Mutex
	procs  []string
	params [][]store.Param
	failID string
}

func (r *recordingExecutor) ExecuteStoredProcedure(_ context.Context, procedure string, params []store.Param) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs = append(r.procs, procedure)
	r.params = append(r.params, params)
	if r.failID != "" && params[1].Value == r.failID {
		return errors.New("insert failed")
	}
	return nil
}

func (r *recordingExecutor) names() []string {
	out := make([]string, len(r.params))
	for i, p := range r.params {
		out[i], _ = p[0].Value.(string)
	}
	return out
}

func seedTerms(f *testutil.FakeGO) {
	f.Terms[""] = []testutil.FakeTerm{
		{Name: "Aarhus", ID: "a1", ChildCount: 2},
		{Name: "Odense", ID: "o1"},
		{Name: "", ID: "x1"},
		{Name: "NoID"},
	}
	f.Terms["a1"] = []testutil.FakeTerm{
		{Name: "Trøjborg", ID: "t1"},
		{Name: "Risskov", ID: "r1", ChildCount: 1},
	}
	f.Terms["r1"] = []testutil.FakeTerm{{Name: "Strand & Skov", ID: "s1"}}
}

func baseOptions(f *testutil.FakeGO) Options {
	return Options{
		BaseURL:         f.URL(),
		CaseType:        "GEO",
		TermSetUUID:     termSet,
		StoredProcedure: "GO_Terms_Insert",
	}
}

func TestChildTermsURL(t *testing.T) {
	if got := ChildTermsURL("https://go.example.dk/", "GEO", false); got != "https://go.example.dk/GEO/_vti_bin/taxonomyinternalservice.json/GetChildTermsInTermSetWithPaging" {
		t.Errorf("root url = %s", got)
	}
	if got := ChildTermsURL("https://go.example.dk", "GEO", true); got != "https://go.example.dk/GEO/_vti_bin/taxonomyinternalservice.json/GetChildTermsInTermWithPaging" {
		t.Errorf("child url = %s", got)
	}
}

func TestRequestBody(t *testing.T) {
	o := Options{TermSetUUID: termSet}
	root := RequestBody("", o)
	if root["guid"] != nil {
		t.Errorf("root guid = %v, want nil", root["guid"])
	}
	if _, ok := root["termsetId"]; ok {
		t.Error("root request carries termsetId")
	}
	if root["pageLimit"] != 2000 || root["lcid"] != 1030 || root["sspId"] != "fa62fa7306a44d3fac304c119cbd4bd7" {
		t.Errorf("defaults = %v %v %v", root["pageLimit"], root["lcid"], root["sspId"])
	}
	child := RequestBody("a1", Options{TermSetUUID: termSet, PageLimit: 50, LCID: 1033})
	if child["guid"] != "a1" || child["termsetId"] != termSet || child["pageLimit"] != 50 || child["lcid"] != 1033 {
		t.Errorf("child body = %v", child)
	}
}

func TestProcedureQualification(t *testing.T) {
	if got := (Options{StoredProcedure: "GO_Terms_Insert"}).Procedure(); got != "rpa.GO_Terms_Insert" {
		t.Errorf("got %s", got)
	}
	if got := (Options{StoredProcedure: "dbo.GO_Terms_Insert"}).Procedure(); got != "dbo.GO_Terms_Insert" {
		t.Errorf("got %s", got)
	}
}

func TestSync_WritesHierarchyInPreOrder(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)

	ex := &recordingExecutor{}
	stats, err := Sync(context.Background(), goapi.NewClient(resty.New()), ex, baseOptions(f))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := []string{"Aarhus", "Trøjborg", "Risskov", "Strand & Skov", "Odense"}
	if got := ex.names(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if stats.Fetched != 5 || stats.Written != 5 {
		t.Fatalf("stats = %+v", stats)
	}

	wantParents := []any{nil, "a1", "a1", "r1", nil}
	for i, p := range ex.params {
		if ex.procs[i] != "rpa.GO_Terms_Insert" {
			t.Errorf("procedure = %s", ex.procs[i])
		}
		if p[2].Name != "parent_uuid" || p[2].Value != wantParents[i] {
			t.Errorf("row %d parent = %v, want %v", i, p[2].Value, wantParents[i])
		}
		if p[3].Value != termSet {
			t.Errorf("row %d term set = %v", i, p[3].Value)
		}
	}

	var lookups []testutil.RecordedRequest
	for _, r := range f.Requests() {
		if strings.Contains(r.Path, "taxonomyinternalservice.json") {
			lookups = append(lookups, r)
		}
	}
	if len(lookups) != 3 {
		t.Fatalf("lookups = %d, want 3 (root, a1, r1)", len(lookups))
	}
	root := lookups[0]
	if !strings.HasSuffix(root.Path, "/GetChildTermsInTermSetWithPaging") {
		t.Errorf("root path = %s", root.Path)
	}
	if _, ok := root.Body["termsetId"]; ok {
		t.Error("root lookup sent termsetId")
	}
	if root.Header.Get("X-RequestDigest") != f.FormDigest {
		t.Errorf("digest header = %q", root.Header.Get("X-RequestDigest"))
	}
	if ct := root.Header.Get("Content-Type"); ct != "application/json; charset=UTF-8" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasSuffix(lookups[1].Path, "/GetChildTermsInTermWithPaging") || lookups[1].Body["termsetId"] != termSet {
		t.Errorf("child lookup = %s %v", lookups[1].Path, lookups[1].Body)
	}
}

func TestSync_StartTerm(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)

	opts := baseOptions(f)
	opts.StartTermID = "a1"
	ex := &recordingExecutor{}
	if _, err := Sync(context.Background(), goapi.NewClient(resty.New()), ex, opts); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := strings.Join(ex.names(), "|"); got != "Trøjborg|Risskov|Strand & Skov" {
		t.Fatalf("names = %s", got)
	}
	if ex.params[0][2].Value != "a1" {
		t.Errorf("first parent = %v", ex.params[0][2].Value)
	}
}

func TestSync_NoFormDigest(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)
	f.FormDigest = ""

	ex := &recordingExecutor{}
	_, err := Sync(context.Background(), goapi.NewClient(resty.New()), ex, baseOptions(f))
	if !errors.Is(err, goapi.ErrNoFormDigest) {
		t.Fatalf("err = %v, want ErrNoFormDigest", err)
	}
	if len(ex.params) != 0 {
		t.Fatal("terms written without a digest")
	}
	for _, r := range f.Requests() {
		if strings.Contains(r.Path, "taxonomyinternalservice.json") {
			t.Fatalf("child lookup issued without a digest: %s", r.Path)
		}
	}
}

func TestSync_FailedLookupWritesNothing(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)
	f.FailTermParent = "r1"

	ex := &recordingExecutor{}
	_, err := Sync(context.Background(), goapi.NewClient(resty.New()), ex, baseOptions(f))
	if err == nil {
		t.Fatal("expected error")
	}
	if goapi.StatusCode(err) != 500 {
		t.Errorf("status = %d", goapi.StatusCode(err))
	}
	if len(ex.params) != 0 {
		t.Fatalf("%d terms written after failed lookup", len(ex.params))
	}
}

func TestSync_CycleDetected(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	f.Terms[""] = []testutil.FakeTerm{{Name: "Loop", ID: "l1", ChildCount: 1}}
	f.Terms["l1"] = []testutil.FakeTerm{{Name: "Loop again", ID: "l1", ChildCount: 1}}

	_, err := Sync(context.Background(), goapi.NewClient(resty.New()), &recordingExecutor{}, baseOptions(f))
	if !errors.Is(err, ErrTermCycle) {
		t.Fatalf("err = %v, want ErrTermCycle", err)
	}
}

func TestSync_RowFailuresAreAggregated(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)

	ex := &recordingExecutor{failID: "t1"}
	stats, err := Sync(context.Background(), goapi.NewClient(resty.New()), ex, baseOptions(f))
	if err == nil || !strings.Contains(err.Error(), "1 of 5 terms failed") {
		t.Fatalf("err = %v", err)
	}
	if stats.Written != 4 || stats.Failed != 1 || len(ex.params) != 5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSync_WritesOutputFile(t *testing.T) {
	f := testutil.NewFakeGO()
	defer f.Close()
	seedTerms(f)

	opts := baseOptions(f)
	opts.OutputFile = filepath.Join(t.TempDir(), "out", "terms.json")
	if _, err := Sync(context.Background(), goapi.NewClient(resty.New()), &recordingExecutor{}, opts); err != nil {
		t.Fatalf("sync: %v", err)
	}
	raw, err := os.ReadFile(opts.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if !strings.Contains(s, "Strand & Skov") || !strings.Contains(s, "Trøjborg") {
		t.Fatalf("escaped output: %s", s)
	}
	if !strings.Contains(s, "\n    \"Children\"") {
		t.Fatalf("not indented with four spaces: %s", s)
	}
	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		t.Fatal(err)
	}
	if tree.Size() != 5 || tree.Children[0].Children[1].Children[0].ParentID != "r1" {
		t.Fatalf("round trip = %+v", tree)
	}
}

func TestInsert_StatementAndNullParent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	h := store.New(db, mssql.NewDialect(), store.WithRetryConfig(retry.NoRetry()))
	defer func() { _ = h.Close() }()

	stmt := regexp.QuoteMeta("EXEC rpa.GO_Terms_Insert @name = @name, @uuid = @uuid, @parent_uuid = @parent_uuid, @term_set_uuid = @term_set_uuid")
	mock.ExpectExec(stmt).WithArgs("Aarhus", "a1", nil, termSet).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs("Trøjborg", "t1", "a1", termSet).WillReturnResult(sqlmock.NewResult(0, 1))

	tree := &Tree{Children: []Term{{Name: "Aarhus", ID: "a1", Children: []Term{{Name: "Trøjborg", ID: "t1", ParentID: "a1"}}}}}
	written, failed, err := Insert(context.Background(), h, tree, Options{TermSetUUID: termSet, StoredProcedure: "GO_Terms_Insert"})
	if err != nil || written != 2 || failed != 0 {
		t.Fatalf("insert = %d %d %v", written, failed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFlatten_Empty(t *testing.T) {
	if Flatten(nil) != nil {
		t.Fatal("nil tree should flatten to nil")
	}
	if (&Tree{}).Size() != 0 {
		t.Fatal("empty tree should have size 0")
	}
}
