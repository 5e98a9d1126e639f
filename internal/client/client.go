// Package client executes REST query descriptors against the ldproxy
// admin API and reconciles their results with the local store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"

	"github.com/agentic-research/wfsproxy-manager/internal/ingest"
)

const maxBodySize = 32 << 20

// Kind classifies API failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// APIError is a failed query.
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	Details []string
	Err     error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an APIError of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// Result is the outcome of one query. Err is nil for 2xx responses.
type Result struct {
	Status int
	Body   []byte
	Err    error
}

// OK reports whether the query succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Decode unmarshals the response body into v.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Doer executes queries.
type Doer interface {
	Do(ctx context.Context, q Query) Result
}

// Client is the HTTP Doer.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. hc itself is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout. It applies regardless of the
// option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the admin API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	return c, nil
}

// Do implements Doer.
func (c *Client) Do(ctx context.Context, q Query) Result {
	ref, err := url.Parse(q.Path)
	if err != nil {
		return Result{Err: &APIError{Kind: KindInternal, Message: "parse query path", Err: err}}
	}
	u := c.base.ResolveReference(ref)
	if len(q.Params) > 0 {
		u.RawQuery = q.Params.Encode()
	}

	var body io.Reader
	if q.Body != nil {
		b, err := json.Marshal(q.Body)
		if err != nil {
			return Result{Err: &APIError{Kind: KindInternal, Message: "encode request body", Err: err}}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, q.Method, u.String(), body)
	if err != nil {
		return Result{Err: &APIError{Kind: KindInternal, Message: "build request", Err: err}}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("query", q.Key()).Msg("request failed")
		return Result{Err: &APIError{Kind: KindTransport, Err: err}}
	}
	defer func() { _ = resp.Body.Close() }() // safe to ignore

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{Status: resp.StatusCode, Err: &APIError{Kind: KindTransport, Status: resp.StatusCode, Err: err}}
	}

	c.log.Debug().
		Str("query", q.Key()).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request done")

	res := Result{Status: resp.StatusCode, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = decodeError(resp.StatusCode, data)
	}
	return res
}

// decodeError extracts {"error": {"message", "details"}} from a failed response.
func decodeError(status int, body []byte) *APIError {
	e := &APIError{Kind: kindForStatus(status), Status: status}
	doc, err := oj.Parse(body)
	if err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}
	w := ingest.NewJsonWalker()
	if msgs, _ := w.Strings(doc, "$.error.message"); len(msgs) > 0 {
		e.Message = msgs[0]
	} else {
		e.Message = http.StatusText(status)
	}
	e.Details, _ = w.Strings(doc, "$.error.details[*]")
	return e
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindInternal
	}
}
