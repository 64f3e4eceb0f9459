// Package registry implements the Client Registry collaborator from
// spec §4.5 and §9: a read-only id -> signway.ClientRecord lookup, safe
// for concurrent use, with an in-memory reference implementation and a
// file-backed implementation that reloads from an atomically-swapped
// snapshot (spec §9 "Registry freshness").
package registry

import (
	"errors"

	"github.com/signway/signway"
)

// ErrNotFound is returned by Lookup when a credential does not resolve
// to any client record.
var ErrNotFound = errors.New("registry: client not found")

// Registry is the full collaborator interface the admission handler
// depends on. It embeds signway.Registry (the narrower shape the
// verification core itself needs) and adds Close for implementations
// that own background resources (a file watcher, a poll loop).
type Registry interface {
	signway.Registry

	// Close releases any resources the registry owns. Implementations
	// with nothing to release may make this a no-op.
	Close() error
}
