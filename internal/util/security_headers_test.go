package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func stampedHeaders(t *testing.T, mutate func(*http.Request)) http.Header {
	t.Helper()
	handler := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/lessons", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Header()
}

func TestWithSecurityHeaders(t *testing.T) {
	headers := stampedHeaders(t, nil)

	for _, want := range apiSecurityHeaders {
		if got := headers.Get(want[0]); got != want[1] {
			t.Fatalf("%s = %q, want %q", want[0], got, want[1])
		}
	}
	if got := headers.Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("unexpected HSTS on a plain http request: %q", got)
	}
}

func TestWithSecurityHeadersHSTSOnForwardedHTTPS(t *testing.T) {
	headers := stampedHeaders(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	})

	if got := headers.Get("Strict-Transport-Security"); got == "" {
		t.Fatal("expected HSTS header on a forwarded https request")
	}
}
