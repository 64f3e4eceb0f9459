package signway

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Clock abstracts wall-clock time so tests can control "now" precisely
// when exercising the expiry boundary (spec §8 "Expiry" property).
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// VerifyRequest holds everything Verify needs to rebuild the canonical
// request and check it against a resolved client record.
type VerifyRequest struct {
	Method  string
	Host    string // the request's own Host header value
	Path    string
	Query   url.Values
	Headers map[string][]string // raw inbound headers, any case
	Shape   HostShape
	Clock   Clock         // nil defaults to SystemClock
	Skew    time.Duration // clock-skew tolerance added to the expiry deadline
}

// Registry is the minimal read-only lookup Verify depends on. The full
// collaborator interface (with context-aware, possibly remote lookups)
// lives in the sibling registry package; this narrower shape is all the
// verification core needs and keeps this package free of any storage
// dependency.
type Registry interface {
	Lookup(ctx context.Context, id string) (*ClientRecord, error)
}

// VerifyResult is the successful output of Verify: the resolved client
// record and the parsed signing parameters, both needed downstream by
// the Forwarder (header overlay, upstream host).
type VerifyResult struct {
	Client *ClientRecord
	Params *SignedURLParams
}

// Verify implements the verification order from spec §4.2, short-
// circuiting on first failure with the failure kind preserved:
//
//  1. parse X-Sw-* parameters (Malformed)
//  2. algorithm recognized (Unsupported)
//  3. date/expires parse and the window has not elapsed (Expired)
//  4. credential resolves in registry (UnknownClient)
//  5. host-allowlist permits the upstream host (Forbidden): the
//     inbound Host under HostShapeInSignature, X-Sw-Host under
//     HostShapeInParameter
//  6. rebuild canonical request / string-to-sign
//  7. recompute signature, compare in constant time (BadSignature)
func Verify(ctx context.Context, req VerifyRequest, registry Registry) (*VerifyResult, *VerifyError) {
	params, verr := ParseParams(req.Query, req.Shape)
	if verr != nil {
		return nil, verr
	}

	if params.Algorithm != AlgorithmSW1HMACSHA256 {
		return nil, newVerifyError(FailureUnsupported, "unsupported algorithm",
			"algorithm %q is not recognized", params.Algorithm)
	}

	clock := req.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	deadline := params.ExpiresAt().Add(req.Skew)
	if !clock.Now().Before(deadline) {
		return nil, newVerifyError(FailureExpired, "signed URL expired",
			"now=%v expiresAt=%v skew=%v", clock.Now(), params.ExpiresAt(), req.Skew)
	}

	client, err := registry.Lookup(ctx, params.Credential)
	if err != nil || client == nil {
		return nil, newVerifyError(FailureUnknownClient, "unknown client",
			"credential %q: %v", params.Credential, err)
	}

	if !client.AllowsAlgorithm(params.Algorithm) {
		return nil, newVerifyError(FailureUnsupported, "unsupported algorithm",
			"client %q does not accept algorithm %q", params.Credential, params.Algorithm)
	}

	upstreamHost := req.Host
	if req.Shape == HostShapeInParameter {
		upstreamHost = params.Host
	}
	if !client.AllowsHost(upstreamHost) {
		return nil, newVerifyError(FailureForbidden, "host not allowed",
			"client %q may not target host %q", params.Credential, upstreamHost)
	}

	signedHeaders, verr := collectSignedHeaders(req.Headers, params.SignedHeaders)
	if verr != nil {
		return nil, verr
	}

	canonical := CanonicalRequest{
		Method:        strings.ToUpper(req.Method),
		Host:          strings.ToLower(upstreamHost),
		Path:          req.Path,
		Query:         queryParamsFromValues(req.Query),
		SignedHeaders: signedHeaders,
		BodyHash:      params.Body,
	}
	canonicalStr, cerr := canonical.Canonicalize()
	if cerr != nil {
		return nil, newVerifyError(FailureMalformed, "malformed request", "%v", cerr)
	}

	sts := StringToSign(params.Algorithm, FormatSignDate(params.Date), canonicalStr)
	expected := computeSignature(client.Secret, sts)

	if !constantTimeHexEqual(expected, params.Signature) {
		return nil, newVerifyError(FailureBadSignature, "signature mismatch", "")
	}

	return &VerifyResult{Client: client, Params: params}, nil
}

// collectSignedHeaders looks up each declared signed header (case-
// insensitively) in the inbound headers, in declared order. A missing
// signed header is Malformed: the caller claimed it was part of the
// signature but it is absent from the request actually received.
func collectSignedHeaders(headers map[string][]string, names []string) ([]Header, *VerifyError) {
	lower := make(map[string]string, len(headers))
	for k, vs := range headers {
		if len(vs) > 0 {
			lower[strings.ToLower(k)] = strings.Join(vs, ",")
		}
	}

	out := make([]Header, 0, len(names))
	for _, name := range names {
		v, ok := lower[name]
		if !ok {
			return nil, newVerifyError(FailureMalformed, "malformed request",
				"signed header %q not present on request", name)
		}
		out = append(out, Header{Name: name, Value: v})
	}
	return out, nil
}

// constantTimeHexEqual compares two hex strings in fixed time over
// their decoded bytes. Unequal-length inputs are rejected up front —
// that comparison is on length, not content, and does not leak timing
// about where bytes differ.
func constantTimeHexEqual(expectedHex, gotHex string) bool {
	expected, err1 := hex.DecodeString(expectedHex)
	got, err2 := hex.DecodeString(gotHex)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(expected) != len(got) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, got) == 1
}
