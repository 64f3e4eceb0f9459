package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
)

// MockUpstream wraps a real httptest.Server so the forwarder's
// streaming pump can be exercised against actual sockets rather than a
// hand-rolled RoundTripper: the connection pool, dialer, and Transport
// wiring undergo the same code path they would against a live upstream.
//
// Example:
//
//	up := testutil.NewMockUpstream(func(w http.ResponseWriter, r *http.Request) {
//	    w.Write([]byte("ok"))
//	})
//	defer up.Close()
//	target := up.URL("/")
type MockUpstream struct {
	server *httptest.Server
}

// NewMockUpstream starts a test server backed by handler.
func NewMockUpstream(handler http.HandlerFunc) *MockUpstream {
	return &MockUpstream{server: httptest.NewServer(handler)}
}

// URL returns the parsed URL of the running server, with Path set to
// path so callers don't have to string-concatenate.
func (m *MockUpstream) URL(path string) *url.URL {
	u, err := url.Parse(m.server.URL)
	if err != nil {
		panic(err)
	}
	u.Path = path
	return u
}

// Close shuts down the underlying server.
func (m *MockUpstream) Close() {
	m.server.Close()
}
