package forwarder

import (
	"net/http"
	"strings"

	"github.com/signway/signway"
)

// hopByHopHeaders lists the headers excluded from both the outbound
// (upstream-bound) and inbound (caller-bound) copy per spec §4.4.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// copyHeaders copies src into dst, skipping hop-by-hop headers and
// (when excludeHost is true) the Host header, which the caller sets
// separately via http.Request.Host.
func copyHeaders(dst, src http.Header, excludeHost bool) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		if excludeHost && strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// applyOverlay applies a client record's header overlay to headers,
// replacing any existing values for a name the overlay also sets
// (spec §4.4: "which replaces it") and appending the rest. Overlay
// entries are applied in declared order.
func applyOverlay(headers http.Header, overlay signway.HeaderOverlay) {
	for _, h := range overlay {
		headers.Set(h.Name, h.Value)
	}
}
