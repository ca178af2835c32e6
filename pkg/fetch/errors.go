package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Kind is the closed classification every underlying failure is normalized
// into. Retry decisions and callers see only these kinds.
type Kind string

const (
	// KindCancelled means the caller's context was cancelled. Never retried,
	// always surfaced immediately.
	KindCancelled Kind = "cancelled"

	// KindConnectivity means the network path is unavailable (connection
	// refused/reset, unreachable host or network).
	KindConnectivity Kind = "connectivity"

	// KindTimeout means the attempt exceeded its time budget.
	KindTimeout Kind = "timeout"

	// KindDNS means host resolution failed.
	KindDNS Kind = "dns"

	// KindTLS means certificate or TLS negotiation failed.
	KindTLS Kind = "tls"

	// KindInvalidTarget means the request target could not be parsed or used.
	KindInvalidTarget Kind = "invalid_target"

	// KindAuthRequired means the server demanded authentication (401).
	KindAuthRequired Kind = "auth_required"

	// KindHTTPStatus means the server answered with a non-success status
	// other than 401/429.
	KindHTTPStatus Kind = "http_status"

	// KindDecode means the payload could not be decoded into the requested
	// structure.
	KindDecode Kind = "decode"

	// KindRateLimited means the server answered 429.
	KindRateLimited Kind = "rate_limited"

	// KindGeneric wraps anything unrecognized, carrying the original
	// description.
	KindGeneric Kind = "generic"
)

// Error is the normalized failure surfaced to callers and fed into retry
// decisions. Exactly one Error (or a payload) is returned per Fetch call;
// intermediate attempt failures are never exposed.
type Error struct {
	Kind Kind

	// StatusCode and Body are set for KindHTTPStatus, KindAuthRequired, and
	// KindRateLimited.
	StatusCode int
	Body       []byte

	// RetryAfter is the server-requested delay for KindRateLimited, when the
	// response carried one.
	RetryAfter time.Duration

	// Elapsed is the observed duration for KindTimeout, when known.
	Elapsed time.Duration

	// Path and ExpectedType locate a KindDecode failure within the payload.
	Path         string
	ExpectedType string

	// Detail carries kind-specific context (DNS reason, TLS detail, ...).
	Detail string

	// Err is the underlying cause, preserved for errors.Is/As.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus, KindAuthRequired, KindRateLimited:
		return fmt.Sprintf("fetch %s error (status %d)", e.Kind, e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("fetch decode error at %q (want %s): %s", e.Path, e.ExpectedType, e.Detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s error: %s", e.Kind, e.Detail)
	}
}

// Unwrap implements error unwrapping for errors.Is/As. For KindCancelled this
// exposes the original context error verbatim.
func (e *Error) Unwrap() error {
	return e.Err
}

// Class reports the informational client/server split for status-coded
// failures, and the kind name otherwise. Used as a metrics label.
func (e *Error) Class() string {
	if e.StatusCode >= 500 {
		return "server"
	}
	if e.StatusCode >= 400 {
		return "client"
	}
	return string(e.Kind)
}

// Normalize maps any failure into the closed taxonomy. It is idempotent: an
// already-normalized failure is returned unchanged. Cancellation is detected
// first and carried verbatim.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindDNS, Detail: dnsErr.Err, Err: err}
	}

	if detail, ok := tlsDetail(err); ok {
		return &Error{Kind: KindTLS, Detail: detail, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return &Error{Kind: KindInvalidTarget, Detail: urlErr.Err.Error(), Err: err}
	}
	if _, ok := err.(*url.EscapeError); ok {
		return &Error{Kind: KindInvalidTarget, Detail: err.Error(), Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	if isConnectivity(err) {
		return &Error{Kind: KindConnectivity, Err: err}
	}

	if derr, ok := decodeDetail(err); ok {
		return derr
	}

	return &Error{Kind: KindGeneric, Detail: err.Error(), Err: err}
}

// tlsDetail recognizes certificate and TLS negotiation failures.
func tlsDetail(err error) (string, bool) {
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return unknownAuthority.Error(), true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return hostname.Error(), true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return invalid.Error(), true
	}
	var verification *tls.CertificateVerificationError
	if errors.As(err, &verification) {
		return verification.Error(), true
	}
	var record tls.RecordHeaderError
	if errors.As(err, &record) {
		return record.Msg, true
	}
	return "", false
}

// isConnectivity recognizes refused/reset connections and unreachable
// hosts/networks.
func isConnectivity(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// decodeDetail recognizes structured decode failures with enough context to
// be diagnosable: the path within the structure and the expected type.
func decodeDetail(err error) (*Error, bool) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = "$"
		}
		return &Error{
			Kind:         KindDecode,
			Path:         path,
			ExpectedType: typeErr.Type.String(),
			Detail:       fmt.Sprintf("got %s", typeErr.Value),
			Err:          err,
		}, true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{
			Kind:         KindDecode,
			Path:         fmt.Sprintf("offset %d", syntaxErr.Offset),
			ExpectedType: "valid JSON",
			Detail:       syntaxErr.Error(),
			Err:          err,
		}, true
	}
	return nil, false
}

// statusError builds the normalized failure for a non-success HTTP status.
// 401 and 429 get their own kinds; everything else is KindHTTPStatus with the
// informational client/server split available via Class.
func statusError(resp *Response) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	switch {
	case resp.StatusCode == 401:
		e.Kind = KindAuthRequired
	case resp.StatusCode == 429:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(resp)
	default:
		e.Kind = KindHTTPStatus
	}
	return e
}

// parseRetryAfter reads a delay-seconds Retry-After value. HTTP-date and
// otherwise malformed forms are ignored; the backoff policy's own delay
// applies instead.
func parseRetryAfter(resp *Response) time.Duration {
	if resp.Headers == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Headers.Get("Retry-After"))
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
