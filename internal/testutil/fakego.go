// Package testutil provides an in-process GetOrganized (GO) server for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
)

// FakeTerm is a node served by the taxonomy internal service.
type FakeTerm struct {
	Name       string
	ID         string
	ChildCount int
}

// RecordedRequest captures what the fake server received.
type RecordedRequest struct {
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// FakeGO serves the three GO endpoints termsync talks to:
// RenderListDataAsStream pages, the term store manager page (form digest)
// and the taxonomy internal service.
type FakeGO struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest

	// ListPages are served in order; the page index is taken from p_ID.
	ListPages [][]map[string]any
	// FailListPage makes the page at this index answer 500. -1 disables.
	FailListPage int
	// FormDigest is embedded in the term store manager page. Empty serves a page without one.
	FormDigest string
	// Terms maps a parent GUID ("" for the term set root) to its children.
	Terms map[string][]FakeTerm
	// FailTermParent makes child lookups for this parent answer 500.
	FailTermParent string
}

// NewFakeGO starts the server. Call Close when done.
func NewFakeGO() *FakeGO {
	gin.SetMode(gin.TestMode)
	f := &FakeGO{FailListPage: -1, FormDigest: "0xDIGEST,19 Oct 2026 10:00:00 -0000", Terms: map[string][]FakeTerm{}}

	r := gin.New()
	r.Use(f.record)
	r.POST("/:caseType/_api/*rest", f.listPage)
	r.POST("/:caseType/_layouts/15/termstoremanager.aspx", f.termStoreManager)
	r.POST("/:caseType/_vti_bin/taxonomyinternalservice.json/:method", f.childTerms)

	f.server = httptest.NewServer(r)
	return f
}

// URL returns the base URL of the fake site collection host.
func (f *FakeGO) URL() string { return f.server.URL }

// Close shuts down the server.
func (f *FakeGO) Close() { f.server.Close() }

// Requests returns a copy of every request received so far.
func (f *FakeGO) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

func (f *FakeGO) record(c *gin.Context) {
	rec := RecordedRequest{Path: c.Request.URL.Path, Query: c.Request.URL.RawQuery, Header: c.Request.Header.Clone()}
	if c.Request.ContentLength > 0 {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err == nil {
			rec.Body = body
			c.Set("body", body)
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	c.Next()
}

func (f *FakeGO) listPage(c *gin.Context) {
	idx, err := strconv.Atoi(c.DefaultQuery("p_ID", "0"))
	if err != nil || idx < 0 || idx >= len(f.ListPages) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such page"})
		return
	}
	if idx == f.FailListPage {
		c.String(http.StatusInternalServerError, "boom")
		return
	}
	resp := gin.H{"Row": f.ListPages[idx]}
	if idx+1 < len(f.ListPages) {
		resp["NextHref"] = fmt.Sprintf("?Paged=TRUE&p_ID=%d&PageFirstRow=%d&View=%s", idx+1, 31+30*(idx+1), c.Query("View"))
	}
	c.JSON(http.StatusOK, resp)
}

func (f *FakeGO) termStoreManager(c *gin.Context) {
	if f.FormDigest == "" {
		c.Data(http.StatusOK, "text/html", []byte("<html><body>no digest</body></html>"))
		return
	}
	page := fmt.Sprintf(`<html><script>var _spPageContextInfo = {"webTitle":"GO","formDigestValue":"%s","formDigestTimeoutSeconds":1800};</script></html>`, f.FormDigest)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (f *FakeGO) childTerms(c *gin.Context) {
	if c.GetHeader("X-RequestDigest") != f.FormDigest {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid form digest"})
		return
	}
	parent := ""
	if v, ok := c.Get("body"); ok {
		if s, ok := v.(map[string]any)["guid"].(string); ok {
			parent = s
		}
	}
	if f.FailTermParent != "" && parent == f.FailTermParent {
		c.String(http.StatusInternalServerError, "boom")
		return
	}
	content := make([]gin.H, 0, len(f.Terms[parent]))
	for _, t := range f.Terms[parent] {
		content = append(content, gin.H{"Nm": t.Name, "Id": t.ID, "Cc": t.ChildCount})
	}
	c.JSON(http.StatusOK, gin.H{"d": gin.H{"__type": "TermSetPage", "Content": content}})
}
