package fetch

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRequest_Fingerprint_Stability(t *testing.T) {
	base := &Request{
		Method: "GET",
		URL:    "https://api.example.com/items?b=2&a=1",
		Headers: http.Header{
			"Accept":          []string{"application/json"},
			"Accept-Language": []string{"en"},
		},
	}

	tests := []struct {
		name string
		req  *Request
		same bool
	}{
		{
			name: "identical request",
			req:  base.Clone(),
			same: true,
		},
		{
			name: "query parameter order is irrelevant",
			req: &Request{
				Method:  "GET",
				URL:     "https://api.example.com/items?a=1&b=2",
				Headers: base.Headers.Clone(),
			},
			same: true,
		},
		{
			name: "host casing is irrelevant",
			req: &Request{
				Method:  "GET",
				URL:     "https://API.Example.COM/items?b=2&a=1",
				Headers: base.Headers.Clone(),
			},
			same: true,
		},
		{
			name: "default port is irrelevant",
			req: &Request{
				Method:  "GET",
				URL:     "https://api.example.com:443/items?b=2&a=1",
				Headers: base.Headers.Clone(),
			},
			same: true,
		},
		{
			name: "header casing is irrelevant",
			req: &Request{
				Method: "GET",
				URL:    base.URL,
				Headers: http.Header{
					"ACCEPT":          []string{"application/json"},
					"accept-language": []string{"en"},
				},
			},
			same: true,
		},
		{
			name: "sensitive header presence is irrelevant",
			req: &Request{
				Method: "GET",
				URL:    base.URL,
				Headers: http.Header{
					"Accept":          []string{"application/json"},
					"Accept-Language": []string{"en"},
					"Authorization":   []string{"Bearer secret"},
					"Cookie":          []string{"session=xyz"},
					"X-Api-Key":       []string{"key123"},
				},
			},
			same: true,
		},
		{
			name: "different method differs",
			req: &Request{
				Method:  "POST",
				URL:     base.URL,
				Headers: base.Headers.Clone(),
			},
			same: false,
		},
		{
			name: "different path differs",
			req: &Request{
				Method:  "GET",
				URL:     "https://api.example.com/other?b=2&a=1",
				Headers: base.Headers.Clone(),
			},
			same: false,
		},
		{
			name: "different body differs",
			req: &Request{
				Method:  "GET",
				URL:     base.URL,
				Headers: base.Headers.Clone(),
				Body:    []byte("payload"),
			},
			same: false,
		},
		{
			name: "different non-sensitive header differs",
			req: &Request{
				Method: "GET",
				URL:    base.URL,
				Headers: http.Header{
					"Accept":          []string{"application/xml"},
					"Accept-Language": []string{"en"},
				},
			},
			same: false,
		},
	}

	want := base.Fingerprint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Fingerprint()
			if (got == want) != tt.same {
				t.Errorf("Fingerprint match = %v, want %v (got %s)", got == want, tt.same, got)
			}
		})
	}
}

func TestRequest_Fingerprint_NeverContainsBody(t *testing.T) {
	req := &Request{
		Method: "PUT",
		URL:    "https://api.example.com/items",
		Body:   []byte("super-secret-payload"),
	}
	fp := req.Fingerprint()
	if len(fp) == 0 {
		t.Fatal("Expected non-empty fingerprint")
	}
	if strings.Contains(fp, "super-secret-payload") {
		t.Error("Fingerprint must not contain the raw body")
	}
}

func TestRequest_Clone(t *testing.T) {
	orig := &Request{
		Method:  "POST",
		URL:     "https://api.example.com/items",
		Headers: http.Header{"Accept": []string{"application/json"}},
		Body:    []byte("body"),
		Timeout: 5 * time.Second,
	}

	c := orig.Clone()
	c.Headers.Set("Accept", "text/plain")
	c.Body[0] = 'x'

	if orig.Headers.Get("Accept") != "application/json" {
		t.Error("Clone must not share headers with the original")
	}
	if string(orig.Body) != "body" {
		t.Error("Clone must not share the body with the original")
	}
	if c.Timeout != orig.Timeout || c.Method != orig.Method || c.URL != orig.URL {
		t.Error("Clone must copy scalar fields")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sorts query", "https://h/p?b=2&a=1", "https://h/p?a=1&b=2"},
		{"lowercases host", "https://HOST/p", "https://host/p"},
		{"strips https default port", "https://h:443/p", "https://h/p"},
		{"strips http default port", "http://h:80/p", "http://h/p"},
		{"keeps explicit port", "http://h:8080/p", "http://h:8080/p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeURL(tt.in); got != tt.want {
				t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
