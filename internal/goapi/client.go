package goapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
	"github.com/tidwall/gjson"
)

// Client issues authenticated POST requests against a GO site.
// The resty client is expected to already carry the auth method.
type Client struct {
	http   *resty.Client
	logger *common.Logger
}

// NewClient wraps an authenticated resty client.
func NewClient(c *resty.Client) *Client {
	return &Client{http: c, logger: common.GetLogger().WithComponent("goapi")}
}

// Result is the outcome of PostData. Err is nil on success; Body and StatusCode
// are kept for diagnostics in both cases.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the call succeeded and returned valid JSON.
func (r Result) OK() bool { return r.Err == nil }

// JSON returns the parsed body. It is the zero gjson.Result on failure.
func (r Result) JSON() gjson.Result {
	if r.Err != nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// Decode unmarshals the body into v, or returns the request error.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	return json.Unmarshal(r.Body, v)
}

var formDigestPattern = regexp.MustCompile(`formDigestValue":"([^"]+)"`)

// GetFormDigest posts to url and extracts the form digest token. The term store
// manager page embeds it in inline script; _api/contextinfo returns it as JSON.
func (c *Client) GetFormDigest(ctx context.Context, url string) (string, error) {
	resp, err := c.post(ctx, url, map[string]string{"Content-Type": constants.ContentTypeJSONUTF8}, nil)
	if err != nil {
		c.logger.Error("form digest request failed", "error", err, "url", url)
		return "", err
	}
	body := resp.Body()
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, path := range []string{"d.GetContextWebInformation.FormDigestValue", "FormDigestValue"} {
			if v := parsed.Get(path); v.Exists() && v.String() != "" {
				return v.String(), nil
			}
		}
	}
	if m := formDigestPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoFormDigest, url)
}

// PostData posts body as JSON with the given headers. Failures are logged and
// reported through Result.Err; nothing panics and nothing is retried.
func (c *Client) PostData(ctx context.Context, url string, headers map[string]string, body any) Result {
	res := Result{URL: url}
	resp, err := c.post(ctx, url, headers, body)
	if resp != nil {
		res.StatusCode = resp.StatusCode()
		res.Body = resp.Body()
	}
	if err != nil {
		c.logger.Error("request failed", "error", err, "url", url, "status_code", res.StatusCode)
		res.Err = err
		return res
	}
	if !gjson.ValidBytes(res.Body) {
		res.Err = &RequestError{Method: http.MethodPost, URL: url, StatusCode: res.StatusCode, Err: ErrInvalidJSON}
		c.logger.Error("response is not JSON", "url", url, "status_code", res.StatusCode)
	}
	return res
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body any) (*resty.Response, error) {
	logger := c.logger.WithRequest(http.MethodPost, url)
	req := c.http.R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}
	logger.Debug("sending request")
	resp, err := req.Post(url)
	if err != nil {
		return resp, &RequestError{Method: http.MethodPost, URL: url, Err: err}
	}
	logger.Debug("received response", "status_code", resp.StatusCode(), "response_size", len(resp.Body()))
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return resp, &RequestError{
			Method:     http.MethodPost,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       truncate(string(resp.Body()), 512),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}
	return resp, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
