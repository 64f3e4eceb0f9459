package signway

import (
	"fmt"
	"net/http"
)

// FailureKind is the closed taxonomy of verification failures from spec
// §7. Values never carry more detail to the wire than the kind itself;
// richer context (which parameter, which header) belongs on the
// internal log line only, carried by VerifyError.Detail.
type FailureKind int

const (
	// FailureNone indicates verification succeeded.
	FailureNone FailureKind = iota
	// FailureMalformed covers missing/unparseable signing parameters,
	// a non-absolute path, duplicate signing parameters, or a
	// non-hex body hash.
	FailureMalformed
	// FailureUnsupported covers an X-Sw-Algorithm token the gateway
	// does not recognize.
	FailureUnsupported
	// FailureExpired covers a signed URL outside its validity window.
	FailureExpired
	// FailureUnknownClient covers a credential the Registry cannot
	// resolve.
	FailureUnknownClient
	// FailureForbidden covers a host-allowlist rejection.
	FailureForbidden
	// FailureBadSignature covers a recomputed signature that does not
	// match X-Sw-Signature.
	FailureBadSignature
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed"
	case FailureUnsupported:
		return "unsupported"
	case FailureExpired:
		return "expired"
	case FailureUnknownClient:
		return "unknown_client"
	case FailureForbidden:
		return "forbidden"
	case FailureBadSignature:
		return "bad_signature"
	default:
		return "unknown"
	}
}

// StatusCode maps a FailureKind to the HTTP status spec §6/§7 assigns
// it. Expired maps to 400 (the spec permits either 400 or 409;
// implementations must pick one consistently — this one picks 400).
func (k FailureKind) StatusCode() int {
	switch k {
	case FailureMalformed, FailureUnsupported, FailureExpired:
		return http.StatusBadRequest
	case FailureBadSignature, FailureUnknownClient:
		return http.StatusUnauthorized
	case FailureForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// VerifyError reports why Verify rejected a request. Message is a short,
// generic, wire-safe string; Detail is for structured logs only and
// must never be written to an HTTP response body (spec §7: avoid
// signature oracles).
type VerifyError struct {
	Kind    FailureKind
	Message string
	Detail  string
	cause   error
}

func (e *VerifyError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *VerifyError) Unwrap() error { return e.cause }

func newVerifyError(kind FailureKind, message, detailFmt string, args ...any) *VerifyError {
	return &VerifyError{
		Kind:    kind,
		Message: message,
		Detail:  fmt.Sprintf(detailFmt, args...),
	}
}

// ForwardFailureKind is the closed taxonomy of forwarding failures from
// spec §7, distinct from verification failures since they occur after a
// request has already been admitted.
type ForwardFailureKind int

const (
	// ForwardFailureNone indicates the upstream round-trip succeeded.
	ForwardFailureNone ForwardFailureKind = iota
	// ForwardFailureConnect covers a failed outbound connection.
	ForwardFailureConnect
	// ForwardFailureTimeout covers a connect or idle-read timeout
	// before any bytes were forwarded to the caller.
	ForwardFailureTimeout
	// ForwardFailureIO covers an error while streaming the upstream
	// response body, other than an idle-read timeout before any byte was
	// forwarded; the upstream status has already been sent, so the caller
	// connection is closed abruptly rather than completed cleanly.
	ForwardFailureIO
)

// ForwardError reports a forwarding-phase failure.
type ForwardError struct {
	Kind           ForwardFailureKind
	BytesForwarded int64
	cause          error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("signway: forward failed (%v): %v", e.Kind, e.cause)
}

func (e *ForwardError) Unwrap() error { return e.cause }

// StatusCode maps a ForwardFailureKind to the HTTP status spec §6
// assigns it, valid only when BytesForwarded == 0 — once any byte of
// the upstream response has reached the caller, the connection must be
// closed abruptly instead (no status line can be sent after headers).
func (k ForwardFailureKind) StatusCode() int {
	switch k {
	case ForwardFailureTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
