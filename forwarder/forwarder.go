// Package forwarder implements the Forwarder collaborator from spec
// §4.4: it takes an already-verified request, opens an outbound
// connection to the resolved upstream, and streams bytes in both
// directions without buffering a request or response body in full.
package forwarder

import (
	"io"
	"net/http"
	"net/url"

	"github.com/signway/signway"
)

// bufSize bounds the chunk size used to pump bytes between the caller
// and the upstream, so a stream of any length keeps at most this many
// bytes resident at once (spec §4.4 "bounding buffered bytes by a
// small constant").
const bufSize = 64 * 1024

// Forwarder opens outbound requests through a shared ConnectionPool
// and streams bodies in both directions.
type Forwarder struct {
	pool *ConnectionPool
}

// New creates a Forwarder backed by pool.
func New(pool *ConnectionPool) *Forwarder {
	return &Forwarder{pool: pool}
}

// Result reports what happened after Forward's outbound round trip,
// for the caller to log and emit metrics from.
type Result struct {
	StatusCode     int
	BytesForwarded int64
}

// Forward builds an outbound request to target reusing inbound's
// method, headers (minus hop-by-hop headers and Host), and body,
// applies overlay on top, and streams the upstream response back onto
// w as it arrives. It never buffers either body in full.
//
// On success it returns a Result describing the upstream status and
// byte count. On failure before the upstream responded, it returns a
// zero Result and a *signway.ForwardError with BytesForwarded == 0, and
// the caller may still write an error response. Once the upstream
// status has been written to w, a failure is also reported as
// *signway.ForwardError, with Result.StatusCode set, and the caller must
// not attempt to write anything further — the status line is already
// committed and part of the body may already have been flushed.
func (f *Forwarder) Forward(
	w http.ResponseWriter,
	inbound *http.Request,
	target *url.URL,
	overlay signway.HeaderOverlay,
) (Result, error) {
	ctx := inbound.Context()

	outbound, err := http.NewRequestWithContext(ctx, inbound.Method, target.String(), inbound.Body)
	if err != nil {
		return Result{}, &signway.ForwardError{Kind: signway.ForwardFailureConnect}
	}
	outbound.ContentLength = inbound.ContentLength
	outbound.Host = target.Host

	copyHeaders(outbound.Header, inbound.Header, true)
	applyOverlay(outbound.Header, overlay)

	client := &http.Client{Transport: f.pool.Transport(target)}

	resp, err := client.Do(outbound)
	if err != nil {
		kind := signway.ForwardFailureConnect
		if isTimeout(err) {
			kind = signway.ForwardFailureTimeout
		}
		return Result{}, &signway.ForwardError{Kind: kind}
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header, false)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	n, copyErr := pump(w, resp.Body, flusher)
	if copyErr != nil {
		kind := signway.ForwardFailureIO
		if isTimeout(copyErr) && n == 0 {
			kind = signway.ForwardFailureTimeout
		}
		return Result{StatusCode: resp.StatusCode, BytesForwarded: n}, &signway.ForwardError{Kind: kind, BytesForwarded: n}
	}

	return Result{StatusCode: resp.StatusCode, BytesForwarded: n}, nil
}

// pump copies src to dst in bufSize chunks, flushing after every
// chunk so the caller observes bytes as they arrive rather than once
// the whole response has buffered on the server side.
func pump(dst io.Writer, src io.Reader, flusher http.Flusher) (int64, error) {
	buf := make([]byte, bufSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}
			return total, readErr
		}
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	for e := err; e != nil; {
		if tt, ok := e.(timeouter); ok {
			t = tt
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if t != nil {
		return t.Timeout()
	}
	return false
}
