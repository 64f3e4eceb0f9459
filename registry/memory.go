package registry

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/signway/signway"
)

// MemoryRegistry is a static, in-memory Registry backed by a
// concurrent map. Lookups never block each other and never block
// concurrent calls to Put/Delete — the same lock-free guarantee the
// teacher's provider.Registry documents via its RWMutex, implemented
// here with xsync.MapOf's striped internals instead.
type MemoryRegistry struct {
	records *xsync.MapOf[string, *signway.ClientRecord]
}

// NewMemoryRegistry creates an empty in-memory registry. Use Put to
// populate it, or NewStaticRegistry to build one from a fixed set of
// records up front.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: xsync.NewMapOf[string, *signway.ClientRecord]()}
}

// NewStaticRegistry builds a MemoryRegistry pre-populated with records,
// keyed by ClientRecord.ID.
func NewStaticRegistry(records ...*signway.ClientRecord) *MemoryRegistry {
	r := NewMemoryRegistry()
	for _, rec := range records {
		r.Put(rec)
	}
	return r
}

// Lookup implements signway.Registry.
func (r *MemoryRegistry) Lookup(_ context.Context, id string) (*signway.ClientRecord, error) {
	rec, ok := r.records.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Put inserts or replaces a client record.
func (r *MemoryRegistry) Put(rec *signway.ClientRecord) {
	r.records.Store(rec.ID, rec)
}

// Delete removes a client record, if present.
func (r *MemoryRegistry) Delete(id string) {
	r.records.Delete(id)
}

// Close is a no-op; MemoryRegistry owns no background resources.
func (r *MemoryRegistry) Close() error { return nil }
