package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/report"
	"github.com/stretchr/testify/assert"
)

func TestWebHandler(t *testing.T) {
	testFS := fstest.MapFS{
		"index.html":     {Data: []byte("<html>index</html>")},
		"assets/main.js": {Data: []byte("console.log('hello');")},
	}
	srv := newTestServer(t, &mockVendor{}, nil, nil)

	mux := http.NewServeMux()
	mux.Handle("/", srv.webHandler(testFS, http.FileServer(http.FS(testFS))))

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"Serve Existing File", "/assets/main.js", http.StatusOK, "console.log('hello');"},
		{"Serve Index on Root", "/", http.StatusOK, "<html>index</html>"},
		{"Serve Index on Unknown Route", "/reports/2024", http.StatusOK, "<html>index</html>"},
		{"Well Known Not Found", "/.well-known/security.txt", http.StatusNotFound, "not found\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}

	t.Run("Cache Duration", func(t *testing.T) {
		cached := newTestServer(t, &mockVendor{}, nil, nil)
		cached.webCacheDuration = time.Hour
		w := httptest.NewRecorder()
		cached.webHandler(testFS, http.FileServer(http.FS(testFS))).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	})
}

func TestDevProxy(t *testing.T) {
	devServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dev server response"))
	}))
	defer devServer.Close()

	srv := newTestServer(t, &mockVendor{}, nil, nil)
	srv.devProxy = devServer.URL

	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev server response", w.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics.Register()
	srv := newTestServer(t, &mockVendor{}, nil, nil)
	handler := srv.setupHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "foxwatt", w.Header().Get("Server"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"Validation", &report.ValidationError{Message: "year is required"}, http.StatusBadRequest, `{"error":"year is required"}`},
		{"Vendor", powerfox.ErrRateLimited, http.StatusTooManyRequests, `{"error":"Too many requests. Please wait and try again."}`},
		{"Wrapped Vendor", errors.Join(errors.New("fetch"), powerfox.ErrTransmissionRefused), http.StatusPreconditionFailed, `{"error":"Data transmission has been refused by the customer"}`},
		{"Network", &powerfox.Error{Kind: powerfox.KindNetwork, Message: "Failed to reach the Powerfox API"}, http.StatusBadGateway, `{"error":"Failed to reach the Powerfox API"}`},
		{"Unexpected", errors.New("boom"), http.StatusInternalServerError, `{"error":"internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(t.Context(), w, tt.err, "failed")
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
