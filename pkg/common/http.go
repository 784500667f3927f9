package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the release of foxwatt, "dev" for builds without one.
func Version() string {
	if v := strings.TrimSpace(version); v != "" {
		return v
	}
	return "dev"
}

// UserAgent identifies foxwatt towards Powerfox.
func UserAgent() string {
	return "Foxwatt/" + Version()
}

type userAgentTransport struct {
	next http.RoundTripper
}

// RoundTrip sets the foxwatt user agent unless the request brought its own.
func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	// a RoundTripper must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent())
	return t.next.RoundTrip(req)
}

// HTTPClient returns a client for outgoing vendor calls with the given
// overall timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: userAgentTransport{next: http.DefaultTransport},
		Timeout:   timeout,
	}
}
