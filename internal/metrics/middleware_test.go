package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	// second WriteHeader is ignored
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rw.status, http.StatusNotFound)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("recorded code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHTTPMiddleware_ChiPattern(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/sessions/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/api/v1/sessions/abc/stats", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := counterValue(t, m.APIRequestsTotal.WithLabelValues("GET", "/api/v1/sessions/{id}/stats", "404"))
	if got != 1 {
		t.Errorf("requests with route pattern = %v, want 1", got)
	}
	if got := counterValue(t, m.APIErrorsTotal.WithLabelValues("not_found")); got != 1 {
		t.Errorf("not_found errors = %v, want 1", got)
	}
}

func TestHTTPMiddleware_NoGlobal(t *testing.T) {
	called := false
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !called {
		t.Error("next handler not called")
	}
}

func TestRoutePattern_Fallback(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/sessions/6f1c1a38-5f57-4a57-9a55-0d1b1c2f3e4d/wipe", nil)
	if got := routePattern(req); got != "/api/v1/sessions/{id}/wipe" {
		t.Errorf("routePattern() = %q", got)
	}
}

func TestCategorizeStatus(t *testing.T) {
	tests := map[int]string{
		500: "server_error",
		503: "server_error",
		409: "conflict",
		422: "validation",
		401: "auth_error",
		403: "auth_error",
		404: "not_found",
		400: "bad_request",
		418: "client_error",
		200: "unknown",
	}
	for status, want := range tests {
		if got := categorizeStatus(status); got != want {
			t.Errorf("categorizeStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
