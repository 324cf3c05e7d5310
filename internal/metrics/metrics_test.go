package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func metricValue(t *testing.T, r *Run, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				if c := m.GetCounter(); c != nil {
					return c.GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestRun_CountsPagesAndRows(t *testing.T) {
	r := NewRun("taxonomy")
	r.ObservePage("http://go/p1", 30)
	r.ObservePage("http://go/p2", 12)
	r.RowWritten(nil)
	r.RowWritten(errors.New("dup"))
	r.RowsWritten(3)

	if got := metricValue(t, r, "termsync_pages_fetched_total", nil); got != 2 {
		t.Errorf("pages = %v, want 2", got)
	}
	if got := metricValue(t, r, "termsync_rows_fetched_total", nil); got != 42 {
		t.Errorf("rows fetched = %v, want 42", got)
	}
	if got := metricValue(t, r, "termsync_rows_written_total", map[string]string{"outcome": "ok"}); got != 4 {
		t.Errorf("rows ok = %v, want 4", got)
	}
	if got := metricValue(t, r, "termsync_rows_written_total", map[string]string{"outcome": "error"}); got != 1 {
		t.Errorf("rows error = %v, want 1", got)
	}
}

func TestRun_FinishSetsSuccessOnlyWithoutError(t *testing.T) {
	failed := NewRun("term")
	failed.Finish(errors.New("boom"))
	if got := metricValue(t, failed, "termsync_last_success_timestamp_seconds", nil); got != 0 {
		t.Errorf("last success set on failure: %v", got)
	}

	ok := NewRun("term")
	ok.Finish(nil)
	if got := metricValue(t, ok, "termsync_last_success_timestamp_seconds", nil); got <= 0 {
		t.Errorf("last success not set: %v", got)
	}
}

func TestRun_NilIsNoop(t *testing.T) {
	var r *Run
	r.ObservePage("x", 1)
	r.RowsFetched(1)
	r.RowWritten(nil)
	r.RowsWritten(1)
	r.Finish(nil)
	if err := r.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Fatal(err)
	}
	if r.Registry() != nil {
		t.Fatal("nil run has a registry")
	}
}

func TestRun_PushToGateway(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		method, path, body = req.Method, req.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRun("taxonomy")
	r.ObservePage("p", 5)
	r.Finish(nil)
	if err := r.Push(context.Background(), srv.URL, ""); err != nil {
		t.Fatalf("push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/termsync/process/taxonomy" {
		t.Errorf("path = %s", path)
	}
	if body == "" {
		t.Error("empty push body")
	}
}

func TestRun_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRun("term").Push(context.Background(), srv.URL, "rpa")
	if err == nil || !strings.Contains(err.Error(), "metrics: push") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_PushTermRunAfterWrites(t *testing.T) {
	var (
		mu   sync.Mutex
		hits int
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		hits++
		path = req.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRun("term")
	r.RowsFetched(3)
	r.RowWritten(nil)
	r.RowWritten(errors.New("dup"))
	r.Finish(nil)

	mfs, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "process" {
					t.Fatalf("%s carries the grouping label process", mf.GetName())
				}
			}
		}
	}

	if err := r.Push(context.Background(), srv.URL, "termsync"); err != nil {
		t.Fatalf("push: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("gateway hits = %d, want 1", hits)
	}
	if path != "/metrics/job/termsync/process/term" {
		t.Errorf("path = %s", path)
	}
}
