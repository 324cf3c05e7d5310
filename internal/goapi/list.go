package goapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/util"
	"github.com/tidwall/gjson"
)

// Row is one list item as returned by RenderListDataAsStream.
type Row = map[string]any

// Page is a single RenderListDataAsStream response.
type Page struct {
	Rows     []Row
	NextHref string
}

// HasNext reports whether the page carries a cursor to a following page.
func (p Page) HasNext() bool { return p.NextHref != "" }

// PageObserver is notified after every fetched page.
type PageObserver interface {
	ObservePage(url string, rows int)
}

// ListHandler walks a paged SharePoint list. It reuses one authenticated
// session for every page of the chain.
type ListHandler struct {
	client   *Client
	baseURL  string
	endpoint string
	maxPages int
	observer PageObserver
}

// ListOption customises a ListHandler.
type ListOption func(*ListHandler)

// WithMaxPages bounds the cursor chain. Values <= 0 keep the default.
func WithMaxPages(n int) ListOption {
	return func(h *ListHandler) {
		if n > 0 {
			h.maxPages = n
		}
	}
}

// WithPageObserver registers an observer for fetched pages.
func WithPageObserver(o PageObserver) ListOption {
	return func(h *ListHandler) { h.observer = o }
}

// NewListHandler creates a handler whose follow-up URLs are baseURL + endpoint + NextHref.
func NewListHandler(c *Client, baseURL, endpoint string, opts ...ListOption) *ListHandler {
	h := &ListHandler{client: c, baseURL: baseURL, endpoint: endpoint, maxPages: constants.DefaultMaxPages}
	for _, o := range opts {
		o(h)
	}
	return h
}

// NextURL builds the follow-up URL for a NextHref cursor.
func (h *ListHandler) NextURL(nextHref string) string {
	return util.JoinURL(h.baseURL, h.endpoint) + nextHref
}

// FetchPage posts to url and decodes Row and NextHref from the body.
func (h *ListHandler) FetchPage(ctx context.Context, url string) (Page, error) {
	resp, err := h.client.post(ctx, url, map[string]string{"Content-Type": constants.ContentTypeJSON}, nil)
	if err != nil {
		return Page{}, err
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return Page{}, &RequestError{Method: http.MethodPost, URL: url, StatusCode: resp.StatusCode(), Err: ErrInvalidJSON}
	}
	return parsePage(gjson.ParseBytes(body)), nil
}

func parsePage(parsed gjson.Result) Page {
	var page Page
	for _, item := range parsed.Get("Row").Array() {
		if !item.IsObject() {
			continue
		}
		if row, ok := item.Value().(map[string]interface{}); ok {
			page.Rows = append(page.Rows, row)
		}
	}
	if next := parsed.Get("NextHref"); next.Exists() && next.Type == gjson.String {
		page.NextHref = next.String()
	}
	return page
}

// ProcessData fetches initialURL and follows NextHref until a page has none,
// returning every page's rows in order. Any failed page aborts the walk and
// no rows are returned, so callers never persist a partial list.
func (h *ListHandler) ProcessData(ctx context.Context, initialURL string) ([]Row, error) {
	logger := h.client.logger.WithComponent("list-pager")
	var all []Row
	seen := map[string]struct{}{}
	next := initialURL

	for pageNo := 1; next != ""; pageNo++ {
		if pageNo > h.maxPages {
			return nil, fmt.Errorf("%w: more than %d pages from %s", ErrTooManyPages, h.maxPages, initialURL)
		}
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("%w: %s", ErrCursorLoop, next)
		}
		seen[next] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := h.FetchPage(ctx, next)
		if err != nil {
			logger.Error("page fetch failed", "error", err, "page", pageNo, "url", next)
			return nil, fmt.Errorf("fetch page %d: %w", pageNo, err)
		}
		logger.Info("fetched page", "page", pageNo, "rows", len(page.Rows), "url", next)
		if h.observer != nil {
			h.observer.ObservePage(next, len(page.Rows))
		}
		all = append(all, page.Rows...)

		next = ""
		if page.HasNext() {
			next = h.NextURL(page.NextHref)
		}
	}
	return all, nil
}
