package term

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/util"
)

var (
	// ErrUnexpectedResponse is returned when the service answers without d.Content.
	ErrUnexpectedResponse = errors.New("term: response has no d.Content")
	// ErrTermCycle is returned when a term appears twice on the same branch.
	ErrTermCycle = errors.New("term: cycle in term hierarchy")
)

const servicePath = "_vti_bin/taxonomyinternalservice.json"

// Term is one node of a term set hierarchy.
type Term struct {
	Name     string `json:"Name"`
	ID       string `json:"Id"`
	ParentID string `json:"ParentId"`
	Children []Term `json:"Children,omitempty"`
}

// Tree holds the children of the start term, or of the term set root when
// no start term is given. The holder itself is not a term.
type Tree struct {
	ID       string `json:"Id"`
	Children []Term `json:"Children"`
}

// Size counts every term in the tree.
func (t *Tree) Size() int {
	if t == nil {
		return 0
	}
	return len(Flatten(t))
}

// Flatten lists the terms in pre-order: each parent before its children.
func Flatten(t *Tree) []Term {
	if t == nil {
		return nil
	}
	var out []Term
	var walk func([]Term)
	walk = func(ts []Term) {
		for _, n := range ts {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(t.Children)
	return out
}

// ChildTermsURL returns the paging endpoint: term set level without a parent,
// term level with one.
func ChildTermsURL(baseURL, caseType string, hasParent bool) string {
	method := "GetChildTermsInTermSetWithPaging"
	if hasParent {
		method = "GetChildTermsInTermWithPaging"
	}
	return util.JoinURL(baseURL, caseType+"/"+servicePath+"/"+method)
}

// RequestBody builds the child lookup payload. termsetId is only sent with a parent.
func RequestBody(parentID string, o Options) map[string]any {
	var guid any
	if parentID != "" {
		guid = parentID
	}
	body := map[string]any{
		"guid":                       guid,
		"includeDeprecated":          true,
		"includeNoneTaggableTermset": true,
		"lcid":                       o.lcid(),
		"listId":                     constants.EmptyGUID,
		"sspId":                      o.sspID(),
		"webId":                      constants.EmptyGUID,
		"includeCurrentChild":        true,
		"currentChildId":             constants.EmptyGUID,
		"pagingForward":              true,
		"pageLimit":                  o.pageLimit(),
	}
	if parentID != "" {
		body["termsetId"] = o.TermSetUUID
	}
	return body
}

type fetcher struct {
	client  *goapi.Client
	headers map[string]string
	opts    Options
}

// FetchTree walks the hierarchy below opts.StartTermID, recursing into every
// node that reports children. Any failed lookup aborts the walk.
func FetchTree(ctx context.Context, client *goapi.Client, headers map[string]string, opts Options) (*Tree, error) {
	f := &fetcher{client: client, headers: headers, opts: opts}
	onPath := map[string]bool{}
	if opts.StartTermID != "" {
		onPath[opts.StartTermID] = true
	}
	children, err := f.children(ctx, opts.StartTermID, onPath)
	if err != nil {
		return nil, err
	}
	return &Tree{ID: opts.StartTermID, Children: children}, nil
}

func (f *fetcher) children(ctx context.Context, parentID string, onPath map[string]bool) ([]Term, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	url := ChildTermsURL(f.opts.BaseURL, f.opts.CaseType, parentID != "")
	res := f.client.PostData(ctx, url, f.headers, RequestBody(parentID, f.opts))
	if !res.OK() {
		return nil, fmt.Errorf("term: children of %q: %w", parentID, res.Err)
	}
	content := res.JSON().Get("d.Content")
	if !content.IsArray() {
		return nil, fmt.Errorf("%w (parent %q)", ErrUnexpectedResponse, parentID)
	}

	out := []Term{}
	for _, node := range content.Array() {
		name, id := node.Get("Nm").String(), node.Get("Id").String()
		if name == "" || id == "" {
			continue
		}
		t := Term{Name: name, ID: id, ParentID: parentID}
		if node.Get("Cc").Int() > 0 {
			if onPath[id] {
				return nil, fmt.Errorf("%w: %s", ErrTermCycle, id)
			}
			onPath[id] = true
			kids, err := f.children(ctx, id, onPath)
			delete(onPath, id)
			if err != nil {
				return nil, err
			}
			t.Children = kids
		}
		out = append(out, t)
	}
	return out, nil
}
