package cache

import (
	"net/http"
	"strings"
)

// CacheabilityPolicy decides whether a completed response may be written to
// the cache. A response is storable only when the request method is on the
// safe-method allow-list, the request carries no credential-bearing header,
// the response status is 2xx, and the response Cache-Control does not forbid
// storage.
type CacheabilityPolicy struct {
	// SafeMethods is the allow-list of request methods whose responses may
	// be cached.
	SafeMethods []string

	// CredentialHeaders are request headers whose presence vetoes caching.
	CredentialHeaders []string
}

// DefaultCacheabilityPolicy returns the default policy: read-only methods,
// the common credential headers.
func DefaultCacheabilityPolicy() CacheabilityPolicy {
	return CacheabilityPolicy{
		SafeMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CredentialHeaders: []string{
			"Authorization",
			"Proxy-Authorization",
			"Cookie",
			"X-Api-Key",
		},
	}
}

// Storable reports whether a response to the given request may be cached.
func (p CacheabilityPolicy) Storable(method string, reqHeaders http.Header, status int, respHeaders http.Header) bool {
	if !p.safeMethod(method) {
		return false
	}
	for _, h := range p.CredentialHeaders {
		if reqHeaders.Get(h) != "" {
			return false
		}
	}
	if status < 200 || status > 299 {
		return false
	}
	return !forbidsStorage(respHeaders)
}

func (p CacheabilityPolicy) safeMethod(method string) bool {
	for _, m := range p.SafeMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// forbidsStorage checks the response Cache-Control field for directives that
// veto storing the response: no-store, no-cache, private, and max-age=0.
func forbidsStorage(headers http.Header) bool {
	if headers == nil {
		return false
	}
	for _, d := range parseCacheControl(headers.Get("Cache-Control")) {
		switch {
		case d == "no-store", d == "no-cache", d == "private":
			return true
		case strings.HasPrefix(d, "max-age="):
			if strings.TrimPrefix(d, "max-age=") == "0" {
				return true
			}
		}
	}
	return false
}

// parseCacheControl splits a Cache-Control value into lowercased, trimmed
// directives. Quoted arguments are left as-is; the directives this policy
// cares about never carry quoted forms in practice.
func parseCacheControl(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	directives := make([]string, 0, len(parts))
	for _, p := range parts {
		d := strings.ToLower(strings.TrimSpace(p))
		if d != "" {
			directives = append(directives, d)
		}
	}
	return directives
}
