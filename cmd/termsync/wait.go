package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/httpc"
	"github.com/loykin/termsync/internal/util"
)

const (
	defaultWaitStatus   = http.StatusOK
	defaultWaitTimeout  = 60 * time.Second
	defaultWaitInterval = 2 * time.Second
)

type waitParams struct {
	url      string
	method   string
	expected int
	timeout  time.Duration
	interval time.Duration
}

func parseWaitConfig(wc WaitConfig) waitParams {
	p := waitParams{
		url:      strings.TrimSpace(wc.URL),
		method:   strings.ToUpper(util.TrimWithDefault(wc.Method, http.MethodGet)),
		expected: wc.Status,
		timeout:  defaultWaitTimeout,
		interval: defaultWaitInterval,
	}
	if p.expected == 0 {
		p.expected = defaultWaitStatus
	}
	if s, ok := util.TrimEmptyCheck(wc.Timeout); ok {
		if d, err := time.ParseDuration(s); err == nil {
			p.timeout = d
		}
	}
	if s, ok := util.TrimEmptyCheck(wc.Interval); ok {
		if d, err := time.ParseDuration(s); err == nil {
			p.interval = d
		}
	}
	return p
}

func statusOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

// DoWait polls an HTTP endpoint until it returns the expected status or the
// timeout elapses. It is a no-op without a URL. Only GET and HEAD are used.
func DoWait(ctx context.Context, wc WaitConfig, client httpc.Options) error {
	if _, hasURL := util.TrimEmptyCheck(wc.URL); !hasURL {
		return nil
	}
	params := parseWaitConfig(wc)
	rc, err := httpc.New(client)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(params.timeout)
	var lastStatus int
	for {
		req := rc.R().SetContext(ctx)
		var status int
		var reqErr error
		if params.method == http.MethodHead {
			resp, e := req.Head(params.url)
			status, reqErr = statusOf(resp), e
		} else {
			resp, e := req.Get(params.url)
			status, reqErr = statusOf(resp), e
		}
		if reqErr == nil && status == params.expected {
			return nil
		}
		lastStatus = status
		if time.Now().After(deadline) {
			return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d)", params.url, params.expected, lastStatus)
		}

		timer := time.NewTimer(params.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
