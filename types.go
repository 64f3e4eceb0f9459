package signway

import "time"

// Algorithm identifies a signing algorithm understood by the gateway.
//
// The enumeration is closed today (only SW1-HMAC-SHA256 is recognized),
// but is modeled as a string type rather than an int so widening it to a
// second variant never requires renumbering existing values on the wire.
type Algorithm string

// AlgorithmSW1HMACSHA256 is the sole recognized algorithm token: keyed
// hash HMAC-SHA-256, body hash SHA-256.
const AlgorithmSW1HMACSHA256 Algorithm = "SW1-HMAC-SHA256"

// HostShape selects how the upstream host is carried by a signed URL.
type HostShape int

const (
	// HostShapeInSignature means the signed URL's own host IS the
	// upstream host; Signway routes inbound requests by Host header
	// match against the client's declared upstream(s).
	HostShapeInSignature HostShape = iota

	// HostShapeInParameter means the upstream host is carried by the
	// X-Sw-Host signing parameter; Signway is reached at its own
	// public host and dispatches to whatever host the signature names.
	HostShapeInParameter
)

// Header is a single name/value pair. Header names are compared
// case-insensitively but stored as provided; HeaderOverlay preserves
// insertion order since the order overlay headers are applied in is
// part of the forwarder's documented behavior (last write wins).
type Header struct {
	Name  string
	Value string
}

// HeaderOverlay is an ordered sequence of header additions/overrides
// applied by the Forwarder after copying the inbound request's headers.
// An overlay entry with a name already present on the outbound request
// replaces it; entries are otherwise appended.
type HeaderOverlay []Header

// Get returns the value of the first entry matching name
// (case-insensitive), and whether it was found.
func (h HeaderOverlay) Get(name string) (string, bool) {
	for _, e := range h {
		if equalFoldASCII(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// ClientRecord is the immutable, read-only record a Registry lookup
// returns for a credential (X-Sw-Credential) id. It is never mutated
// after construction; concurrent requests for the same id read the same
// record independently and safely.
type ClientRecord struct {
	// ID is the opaque, URL-safe credential identifying this client.
	ID string

	// Secret is the keyed-hash key. Never logged, never compared by
	// substring — only via ConstantTimeCompare.
	Secret []byte

	// HeaderOverlay lists header additions/overrides applied to the
	// outbound (upstream-bound) request.
	HeaderOverlay HeaderOverlay

	// AllowedHosts, if non-empty, restricts which upstream hosts this
	// client's signed URLs may target. An empty list permits any host.
	AllowedHosts []string

	// Algorithms is the set of algorithm tokens this client's secret may
	// be used with. A nil/empty set defaults to {AlgorithmSW1HMACSHA256}.
	Algorithms []Algorithm
}

// AllowsHost reports whether host is permitted for this client. An empty
// allowlist permits any host; comparison is case-insensitive.
func (c *ClientRecord) AllowsHost(host string) bool {
	if len(c.AllowedHosts) == 0 {
		return true
	}
	for _, h := range c.AllowedHosts {
		if equalFoldASCII(h, host) {
			return true
		}
	}
	return false
}

// AllowsAlgorithm reports whether alg is an accepted algorithm for this
// client record.
func (c *ClientRecord) AllowsAlgorithm(alg Algorithm) bool {
	if len(c.Algorithms) == 0 {
		return alg == AlgorithmSW1HMACSHA256
	}
	for _, a := range c.Algorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// QueryParam is a single (name, value) query string pair, order
// preserved as encountered — required because canonicalization must be
// able to reproduce the caller's query deterministically regardless of
// transit reordering, and because SignedHeaders order is significant.
type QueryParam struct {
	Name  string
	Value string
}

// SignedURLParams holds the parsed X-Sw-* query parameters carried by a
// signed URL, per spec §3.
type SignedURLParams struct {
	Algorithm     Algorithm
	Credential    string
	Date          time.Time
	Expires       time.Duration
	SignedHeaders []string // lowercase, declared order
	Body          string   // hex body hash; empty if X-Sw-Body absent
	Signature     string   // hex signature
	Host          string   // only set under HostShapeInParameter
	Scheme        string   // upstream scheme Admission dials; "https" unless X-Sw-Scheme says "http"
}

// ExpiresAt returns the instant at which this signed URL stops being
// valid (Date + Expires).
func (p *SignedURLParams) ExpiresAt() time.Time {
	return p.Date.Add(p.Expires)
}
