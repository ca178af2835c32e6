package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Request is a fully-resolved outbound request as produced by a request
// builder: method, URL, headers, optional body, and an optional per-request
// timeout.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	Timeout time.Duration
}

// Clone returns a deep copy of the request. The retry loop clones the
// original request for every attempt so that interceptor mutations from a
// prior attempt never leak into the next.
func (r *Request) Clone() *Request {
	c := &Request{
		Method:  r.Method,
		URL:     r.URL,
		Timeout: r.Timeout,
	}
	if r.Headers != nil {
		c.Headers = r.Headers.Clone()
	}
	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}
	return c
}

// sensitiveHeaders are excluded from fingerprints: credentials, cookies, API
// keys, tokens, and session/client identifiers. Their presence, absence, or
// order never changes the fingerprint.
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"api-key":             {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"x-access-token":      {},
	"x-session-id":        {},
	"x-client-id":         {},
}

// Fingerprint derives the deterministic dedup/cache key for the request:
// method, normalized URL, a content hash of the body (never the raw body),
// and the filtered, lowercased, sorted non-sensitive headers. Two logically
// identical requests always produce the same fingerprint.
func (r *Request) Fingerprint() string {
	parts := []string{
		strings.ToUpper(r.Method),
		normalizeURL(r.URL),
		bodyHash(r.Body),
	}
	parts = append(parts, canonicalHeaders(r.Headers)...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return fmt.Sprintf("fetch:%s:%x", strings.ToUpper(r.Method), sum)
}

// normalizeURL lowercases the scheme and host, strips default ports, and
// sorts query parameters. An unparseable URL is used verbatim; it will be
// rejected by the transport anyway.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.RawQuery = u.Query().Encode() // sorted by key
	return u.String()
}

// bodyHash returns a hex content hash of the body, or "-" for no body.
func bodyHash(body []byte) string {
	if len(body) == 0 {
		return "-"
	}
	return fmt.Sprintf("%x", sha256.Sum256(body))
}

// canonicalHeaders returns "name=value" pairs for the non-sensitive headers,
// names lowercased, sorted by name, multi-values joined in order.
func canonicalHeaders(h http.Header) []string {
	if h == nil {
		return nil
	}
	pairs := make([]string, 0, len(h))
	for name, values := range h {
		lower := strings.ToLower(name)
		if _, sensitive := sensitiveHeaders[lower]; sensitive {
			continue
		}
		pairs = append(pairs, lower+"="+strings.Join(values, ","))
	}
	sort.Strings(pairs)
	return pairs
}

// Response is the transport's view of a completed exchange: status, headers,
// and the fully-read body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport performs the actual network I/O. The manager treats it as an
// opaque capability and never inspects how it is implemented.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the default Transport backed by net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport with the given default timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send executes the request and reads the full response body.
// A per-request Timeout, when set, bounds the whole exchange via the context.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       payload,
	}, nil
}
