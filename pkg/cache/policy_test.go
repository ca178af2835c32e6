package cache

import (
	"net/http"
	"testing"
)

func TestCacheabilityPolicy_Storable(t *testing.T) {
	policy := DefaultCacheabilityPolicy()

	tests := []struct {
		name        string
		method      string
		reqHeaders  http.Header
		status      int
		respHeaders http.Header
		want        bool
	}{
		{
			name:   "plain 200 GET",
			method: "GET",
			status: 200,
			want:   true,
		},
		{
			name:   "lowercase method still safe",
			method: "get",
			status: 200,
			want:   true,
		},
		{
			name:   "HEAD is safe",
			method: "HEAD",
			status: 204,
			want:   true,
		},
		{
			name:   "404 is never cached",
			method: "GET",
			status: 404,
			want:   false,
		},
		{
			name:   "500 is never cached",
			method: "GET",
			status: 500,
			want:   false,
		},
		{
			name:   "POST is outside the allow-list",
			method: "POST",
			status: 200,
			want:   false,
		},
		{
			name:       "authorization header vetoes",
			method:     "GET",
			reqHeaders: http.Header{"Authorization": []string{"Bearer x"}},
			status:     200,
			want:       false,
		},
		{
			name:       "cookie header vetoes",
			method:     "GET",
			reqHeaders: http.Header{"Cookie": []string{"session=1"}},
			status:     200,
			want:       false,
		},
		{
			name:        "no-store vetoes",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"no-store"}},
			want:        false,
		},
		{
			name:        "no-cache vetoes",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"max-age=300, no-cache"}},
			want:        false,
		},
		{
			name:        "private vetoes",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"private"}},
			want:        false,
		},
		{
			name:        "max-age=0 vetoes",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"max-age=0"}},
			want:        false,
		},
		{
			name:        "positive max-age allows",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"public, max-age=300"}},
			want:        true,
		},
		{
			name:        "directives are case-insensitive",
			method:      "GET",
			status:      200,
			respHeaders: http.Header{"Cache-Control": []string{"No-Store"}},
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Storable(tt.method, tt.reqHeaders, tt.status, tt.respHeaders)
			if got != tt.want {
				t.Errorf("Storable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCacheControl(t *testing.T) {
	got := parseCacheControl(" Public ,max-age=300,  no-transform ")
	want := []string{"public", "max-age=300", "no-transform"}
	if len(got) != len(want) {
		t.Fatalf("Directives = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Directive[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if parseCacheControl("") != nil {
		t.Error("Expected nil for empty value")
	}
}
