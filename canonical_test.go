package signway

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestEmptyBodyHashMatchesSHA256OfEmptyString(t *testing.T) {
	sum := sha256.Sum256([]byte(""))
	want := hex.EncodeToString(sum[:])
	if EmptyBodyHash != want {
		t.Errorf("EmptyBodyHash = %q, want %q", EmptyBodyHash, want)
	}
}

func TestCanonicalizeQueryOrderIndependence(t *testing.T) {
	base := CanonicalRequest{
		Method: "GET",
		Host:   "api.example.com",
		Path:   "/v1/items",
	}

	a := base
	a.Query = []QueryParam{{"x", "1"}, {"y", "2"}, {SignatureParamName, "deadbeef"}}
	b := base
	b.Query = []QueryParam{{"y", "2"}, {SignatureParamName, "deadbeef"}, {"x", "1"}}

	ca, err := a.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize(a): %v", err)
	}
	cb, err := b.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize(b): %v", err)
	}
	if ca != cb {
		t.Errorf("canonical request differs by query order:\na=%q\nb=%q", ca, cb)
	}
}

func TestCanonicalizeExcludesSignature(t *testing.T) {
	withSig := CanonicalRequest{
		Method: "GET",
		Host:   "api.example.com",
		Path:   "/v1/items",
		Query:  []QueryParam{{"x", "1"}, {SignatureParamName, "aaaa"}},
	}
	withoutSig := withSig
	withoutSig.Query = []QueryParam{{"x", "1"}, {SignatureParamName, "bbbb"}}

	ca, err := withSig.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	cb, err := withoutSig.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if ca != cb {
		t.Errorf("signature value leaked into canonical request:\na=%q\nb=%q", ca, cb)
	}
}

func TestCanonicalizeDefaultsBodyHash(t *testing.T) {
	req := CanonicalRequest{Method: "GET", Host: "api.example.com", Path: "/"}
	got, err := req.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	req.BodyHash = EmptyBodyHash
	want, err := req.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != want {
		t.Errorf("missing BodyHash did not default to EmptyBodyHash:\ngot=%q\nwant=%q", got, want)
	}
}

func TestCanonicalizeRequiresAbsolutePath(t *testing.T) {
	req := CanonicalRequest{Method: "GET", Host: "api.example.com", Path: "relative"}
	if _, err := req.Canonicalize(); err == nil {
		t.Error("expected error for non-absolute path, got nil")
	}
}

func TestCanonicalizePercentEncoding(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		query []QueryParam
	}{
		{name: "space in path", path: "/v1/a b"},
		{name: "unreserved chars untouched", path: "/v1/A-Z_a-z0-9.~"},
		{name: "query value with space", query: []QueryParam{{"q", "a b"}}},
		{name: "query value with plus", query: []QueryParam{{"q", "a+b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = "/v1/items"
			}
			req := CanonicalRequest{Method: "GET", Host: "api.example.com", Path: path, Query: tt.query}
			got, err := req.Canonicalize()
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			if got == "" {
				t.Error("canonical request is empty")
			}
		})
	}
}

func TestCanonicalizeSignedHeaderNameCase(t *testing.T) {
	req := CanonicalRequest{
		Method: "GET",
		Host:   "api.example.com",
		Path:   "/",
		SignedHeaders: []Header{
			{Name: "X-Custom", Value: "v1"},
			{Name: "host", Value: "api.example.com"},
		},
	}
	got, err := req.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	lowerFirst := req
	lowerFirst.SignedHeaders = []Header{
		{Name: "x-custom", Value: "v1"},
		{Name: "HOST", Value: "api.example.com"},
	}
	got2, err := lowerFirst.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != got2 {
		t.Errorf("header name case affected canonical request:\na=%q\nb=%q", got, got2)
	}
}
