package forwarder

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/signway/signway"
	"github.com/signway/signway/internal/testutil"
)

func newTestForwarder(t *testing.T) *Forwarder {
	t.Helper()
	pool, err := NewConnectionPool(16, 2*time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("NewConnectionPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool)
}

func TestForwardCopiesStatusAndBody(t *testing.T) {
	up := testutil.NewMockUpstream(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello from upstream"))
	})
	defer up.Close()

	fwd := newTestForwarder(t)
	inbound := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	rec := httptest.NewRecorder()

	result, err := fwd.Forward(rec, inbound, up.URL("/v1/items"), nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if result.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want %d", result.StatusCode, http.StatusCreated)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("recorder code = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got := rec.Body.String(); got != "hello from upstream" {
		t.Errorf("body = %q, want %q", got, "hello from upstream")
	}
	if got := rec.Header().Get("X-Upstream"); got != "yes" {
		t.Errorf("X-Upstream header = %q, want yes", got)
	}
}

func TestForwardExcludesHopByHopHeaders(t *testing.T) {
	up := testutil.NewMockUpstream(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Proxy-Authorization") != "" {
			t.Error("hop-by-hop header Proxy-Authorization reached upstream")
		}
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	})
	defer up.Close()

	fwd := newTestForwarder(t)
	inbound := httptest.NewRequest(http.MethodGet, "/", nil)
	inbound.Header.Set("Proxy-Authorization", "secret")
	rec := httptest.NewRecorder()

	if _, err := fwd.Forward(rec, inbound, up.URL("/"), nil); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if rec.Header().Get("Connection") != "" {
		t.Error("hop-by-hop response header Connection was copied to caller")
	}
}

func TestForwardAppliesHeaderOverlay(t *testing.T) {
	up := testutil.NewMockUpstream(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ABC" {
			t.Errorf("Authorization = %q, want Bearer ABC", got)
		}
		if len(r.Header.Values("Authorization")) != 1 {
			t.Errorf("Authorization appeared %d times, want 1", len(r.Header.Values("Authorization")))
		}
		w.WriteHeader(http.StatusOK)
	})
	defer up.Close()

	fwd := newTestForwarder(t)
	inbound := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	overlay := signway.HeaderOverlay{{Name: "Authorization", Value: "Bearer ABC"}}
	if _, err := fwd.Forward(rec, inbound, up.URL("/"), overlay); err != nil {
		t.Fatalf("Forward: %v", err)
	}
}

func TestForwardStreamsRequestBody(t *testing.T) {
	up := testutil.NewMockUpstream(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("reading upstream body: %v", err)
		}
		if string(body) != "payload" {
			t.Errorf("upstream body = %q, want payload", body)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer up.Close()

	fwd := newTestForwarder(t)
	inbound := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))
	rec := httptest.NewRecorder()

	if _, err := fwd.Forward(rec, inbound, up.URL("/"), nil); err != nil {
		t.Fatalf("Forward: %v", err)
	}
}

func TestForwardConnectFailureReturnsForwardError(t *testing.T) {
	fwd := newTestForwarder(t)
	inbound := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	target, err := url.Parse("http://127.0.0.1:1") // nothing listens here
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	_, err = fwd.Forward(rec, inbound, target, nil)
	if err == nil {
		t.Fatal("expected a forward error, got nil")
	}
	ferr, ok := err.(*signway.ForwardError)
	if !ok {
		t.Fatalf("err type = %T, want *signway.ForwardError", err)
	}
	if ferr.BytesForwarded != 0 {
		t.Errorf("BytesForwarded = %d, want 0", ferr.BytesForwarded)
	}
}
