package signway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// EmptyBodyHash is the hex SHA-256 hash of the empty string, used as the
// body-hash sentinel when a signed URL does not carry X-Sw-Body.
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// SignatureParamName is the sole query parameter excluded from the
// canonical query string (spec §3 invariant).
const SignatureParamName = "X-Sw-Signature"

// CanonicalRequest holds the primitives a canonical request is built
// from. Method, Host and Path are expected pre-normalized by the caller
// (uppercase method, lowercase host with no trailing dot, absolute
// path); Canonicalize re-encodes Path and Query but does not alter
// their case.
type CanonicalRequest struct {
	Method        string
	Host          string
	Path          string
	Query         []QueryParam // full incoming query, signature pair included
	SignedHeaders []Header     // (name_lower, value_trimmed), declared order
	BodyHash      string       // lowercase hex; EmptyBodyHash if unset
}

// Canonicalize builds the byte-exact canonical request string per spec
// §4.1:
//
//	METHOD\nPATH\nQUERY\nHEADERS\nSIGNED_HEADER_NAMES\nBODY_HASH
//
// QUERY is the incoming query minus the single X-Sw-Signature pair,
// sorted by (name, value) and re-percent-encoded. HEADERS is each
// signed header as "name:value\n". Path must start with "/" or an
// error is returned.
func (r *CanonicalRequest) Canonicalize() (string, error) {
	if !strings.HasPrefix(r.Path, "/") {
		return "", fmt.Errorf("signway: canonical path must start with '/': %q", r.Path)
	}

	bodyHash := r.BodyHash
	if bodyHash == "" {
		bodyHash = EmptyBodyHash
	}

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	b.WriteString(canonicalPath(r.Path))
	b.WriteByte('\n')
	b.WriteString(canonicalQuery(r.Query))
	b.WriteByte('\n')
	for _, h := range r.SignedHeaders {
		b.WriteString(strings.ToLower(h.Name))
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(h.Value))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	names := make([]string, len(r.SignedHeaders))
	for i, h := range r.SignedHeaders {
		names[i] = strings.ToLower(h.Name)
	}
	b.WriteString(strings.Join(names, ";"))
	b.WriteByte('\n')
	b.WriteString(bodyHash)

	return b.String(), nil
}

// StringToSign builds the string-to-sign per spec §4.1:
//
//	ALGORITHM\nX-Sw-Date\nHEX(hash(CANONICAL_REQUEST))
//
// date must already be formatted in basic ISO-8601 UTC form
// (YYYYMMDDThhmmssZ) — see FormatSignDate.
func StringToSign(alg Algorithm, date string, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	var b strings.Builder
	b.WriteString(string(alg))
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String()
}

// canonicalQuery sorts query by (name, value) lexicographically,
// excludes the X-Sw-Signature pair, and re-encodes both sides with the
// canonicalization encoder.
func canonicalQuery(query []QueryParam) string {
	filtered := make([]QueryParam, 0, len(query))
	for _, q := range query {
		if q.Name == SignatureParamName {
			continue
		}
		filtered = append(filtered, q)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Name != filtered[j].Name {
			return filtered[i].Name < filtered[j].Name
		}
		return filtered[i].Value < filtered[j].Value
	})

	parts := make([]string, len(filtered))
	for i, q := range filtered {
		parts[i] = encodeRFC3986(q.Name) + "=" + encodeRFC3986(q.Value)
	}
	return strings.Join(parts, "&")
}

// canonicalPath re-percent-encodes a path segment-by-segment, leaving
// '/' raw between segments, per spec §4.1/§6.
func canonicalPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		// Segments may already be percent-encoded by the HTTP layer;
		// decode first so re-encoding is idempotent regardless of how
		// the caller or an intermediary encoded unreserved characters.
		decoded := percentDecode(seg)
		segments[i] = encodeRFC3986(decoded)
	}
	return strings.Join(segments, "/")
}

// encodeRFC3986 percent-encodes s per RFC 3986's unreserved set
// (letters, digits, '-', '.', '_', '~' left raw), space encoded as
// "%20" (never '+'), hex digits uppercase. This is the canonicalization
// encoder referenced throughout spec §4.1 and §6.
func encodeRFC3986(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

// percentDecode decodes %HH sequences; invalid sequences are left
// as-is rather than erroring. Re-decoding before re-encoding makes
// canonicalPath idempotent regardless of whether the caller or an
// intermediary already re-encoded unreserved characters.
func percentDecode(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok := hexVal(s[i+1]); ok {
				if lo, ok := hexVal(s[i+2]); ok {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// equalFoldASCII is a case-insensitive ASCII comparison, used for header
// names and hostnames rather than unicode-aware strings.EqualFold
// because HTTP header/host tokens are ASCII per RFC 7230.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
