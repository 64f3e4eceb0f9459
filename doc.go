// Package signway implements the signing and verification core of the
// Signway gateway: a deterministic HTTP request canonicalizer modeled on
// AWS SigV4, a keyed-hash signer/verifier built on top of it, and the
// supporting types (client records, signed-URL parameters, verification
// failure taxonomy) shared by the registry, forwarder, and admission
// packages.
//
// Signway accepts HTTPS requests whose URL has been pre-signed by a
// trusted issuer, verifies the signature against a per-client secret,
// and forwards the request to a declared upstream API, streaming the
// response back to the caller without buffering it.
package signway
