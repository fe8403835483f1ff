// Package upstream wraps the HTTP client used to reach the model-scoring
// server. Transport failures are reported as a closed set of Failure kinds so
// the proxy handler never has to inspect error strings.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

type FailureKind int

const (
	// FailureConnect means no connection to the upstream was established.
	FailureConnect FailureKind = iota
	// FailureTimeout means a connection was made but no timely response arrived.
	FailureTimeout
	// FailureOther covers every remaining transport-level fault.
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connect"
	case FailureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Failure tags a transport error with its classification.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("upstream %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Response carries the parts of an upstream reply that get relayed verbatim.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Client is a pooled HTTP client with a connect timeout distinct from the
// total request timeout. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	scoreURL string
	baseURL  string
}

// New builds a client for the given scoring URL. The base URL used by health
// probes is the scoring URL with its path dropped, since scoring servers do
// not generally expose a health path.
func New(scoreURL string, connectTimeout, requestTimeout time.Duration) (*Client, error) {
	u, err := url.Parse(scoreURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url %q: %w", scoreURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream url %q missing scheme or host", scoreURL)
	}
	base := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		http:     &http.Client{Transport: transport, Timeout: requestTimeout},
		scoreURL: scoreURL,
		baseURL:  base.String(),
	}, nil
}

// ScoreURL returns the configured scoring endpoint.
func (c *Client) ScoreURL() string { return c.scoreURL }

// BaseURL returns the upstream root used for reachability probes.
func (c *Client) BaseURL() string { return c.baseURL }

// Score posts the raw body to the scoring endpoint and returns the full
// upstream reply. Transport errors come back as *Failure.
func (c *Client) Score(ctx context.Context, body []byte, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scoreURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Kind: FailureOther, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Failure{Kind: Classify(err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Kind: Classify(err), Err: err}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Ping issues a single GET against the upstream base URL and reports the
// status code. Any received response, regardless of status, counts as
// reachable; the caller only needs the error for unreachability.
func (c *Client) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, &Failure{Kind: FailureOther, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &Failure{Kind: Classify(err), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Classify maps a transport error onto a FailureKind. Dial errors are checked
// first: a timed-out dial still means no connection was established.
func Classify(err error) FailureKind {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnect
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureOther
}

// AsFailure unwraps err into a *Failure, defaulting to FailureOther so the
// handler always has a kind to act on.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureOther, Err: err}
}
