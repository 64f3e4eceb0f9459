package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/signway/signway"
)

func TestMemoryRegistryLookupNotFound(t *testing.T) {
	r := NewMemoryRegistry()
	_, err := r.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegistryPutThenLookup(t *testing.T) {
	r := NewMemoryRegistry()
	rec := &signway.ClientRecord{ID: "client-a", Secret: []byte("secret")}
	r.Put(rec)

	got, err := r.Lookup(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != rec {
		t.Error("Lookup returned a different record than was Put")
	}
}

func TestMemoryRegistryPutReplaces(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&signway.ClientRecord{ID: "client-a", Secret: []byte("first")})
	r.Put(&signway.ClientRecord{ID: "client-a", Secret: []byte("second")})

	got, err := r.Lookup(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(got.Secret) != "second" {
		t.Errorf("Secret = %q, want second", got.Secret)
	}
}

func TestMemoryRegistryDelete(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&signway.ClientRecord{ID: "client-a", Secret: []byte("secret")})
	r.Delete("client-a")

	_, err := r.Lookup(context.Background(), "client-a")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNewStaticRegistry(t *testing.T) {
	r := NewStaticRegistry(
		&signway.ClientRecord{ID: "a", Secret: []byte("1")},
		&signway.ClientRecord{ID: "b", Secret: []byte("2")},
	)

	for _, id := range []string{"a", "b"} {
		if _, err := r.Lookup(context.Background(), id); err != nil {
			t.Errorf("Lookup(%q): %v", id, err)
		}
	}
	if _, err := r.Lookup(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(c) err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegistryClose(t *testing.T) {
	r := NewMemoryRegistry()
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
