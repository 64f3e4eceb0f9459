package forwarder

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConcurrencyGuard bounds how many forwarding tasks may be in flight
// for a single client id at once, so one signed URL issued in a tight
// loop (or replayed many times within its validity window) cannot
// exhaust the shared upstream connection pool on behalf of every other
// tenant. A ceiling of 0 means unlimited.
//
// This mirrors the shape of a running-total-with-threshold-check
// resource guard: acquire checks-then-increments under a per-key lock,
// release decrements; the unit tracked here is concurrent requests
// rather than accumulated cost.
type ConcurrencyGuard struct {
	ceiling int
	inUse   *xsync.MapOf[string, *counter]
}

type counter struct {
	mu sync.Mutex
	n  int
}

// NewConcurrencyGuard creates a guard with the given per-client
// ceiling. A ceiling <= 0 disables the guard (Acquire always succeeds).
func NewConcurrencyGuard(ceiling int) *ConcurrencyGuard {
	return &ConcurrencyGuard{
		ceiling: ceiling,
		inUse:   xsync.NewMapOf[string, *counter](),
	}
}

// ErrCeilingExceeded is returned by Acquire when the client is already
// at its in-flight ceiling.
var ErrCeilingExceeded = fmt.Errorf("forwarder: client at in-flight request ceiling")

// Acquire reserves one in-flight slot for clientID. The caller must
// call the returned release func exactly once, regardless of outcome.
func (g *ConcurrencyGuard) Acquire(clientID string) (release func(), err error) {
	if g.ceiling <= 0 {
		return func() {}, nil
	}

	c, _ := g.inUse.LoadOrCompute(clientID, func() *counter { return &counter{} })

	c.mu.Lock()
	if c.n >= g.ceiling {
		c.mu.Unlock()
		return nil, ErrCeilingExceeded
	}
	c.n++
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.n--
		c.mu.Unlock()
	}, nil
}
