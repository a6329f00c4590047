package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "spendguard/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" },
		applog.New(applog.Config{Format: "json", Output: &buf}))

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q != context id %q", rr.Header().Get(HeaderRequestID), seen)
	}
	if !strings.Contains(buf.String(), `"status_code":418`) {
		t.Fatalf("access log missing status: %s", buf.String())
	}
	if got := m.Metrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d", got)
	}
}

func TestMiddlewareKeepsUpstreamID(t *testing.T) {
	m := NewMiddleware(nil, applog.New(applog.Config{Output: &bytes.Buffer{}}))
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("upstream id not kept: %q", rr.Header().Get(HeaderRequestID))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(HeaderRequestID) == "<script>" {
		t.Fatalf("unsafe upstream id must be replaced")
	}
}

func TestServerErrorsCounted(t *testing.T) {
	m := NewMiddleware(nil, applog.New(applog.Config{Output: &bytes.Buffer{}}))
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := m.Metrics().ServerErrors; got != 1 {
		t.Fatalf("ServerErrors = %d", got)
	}
}
