// Package admission implements the single HTTP entry point spec §4.3
// describes: parse an inbound signed request, verify it, resolve the
// upstream target, and hand off to the Forwarder. It never serves any
// other route.
package admission

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signway/signway"
	"github.com/signway/signway/forwarder"
	"github.com/signway/signway/registry"
)

// signParamPrefix marks every query parameter the admission handler
// strips before building the upstream URL (spec §4.3: "the inbound
// request stripped of its X-Sw-* signing parameters").
const signParamPrefix = "X-Sw-"

// Metrics is the subset of metrics.Metrics the handler reports to,
// kept as an interface so this package does not import the concrete
// Prometheus wiring.
type Metrics interface {
	ObserveVerify(kind signway.FailureKind)
	ObserveForward(kind signway.ForwardFailureKind, bytesForwarded int64, duration time.Duration)
	ObserveConcurrencyDenied()
	StreamStarted()
	StreamEnded()
}

// Handler is the gateway's admission HTTP handler.
type Handler struct {
	config    *signway.ServerConfig
	registry  registry.Registry
	forwarder *forwarder.Forwarder
	guard     *forwarder.ConcurrencyGuard
	metrics   Metrics
}

// New builds a Handler. guard and metrics may be nil: a nil guard
// disables the per-client concurrency ceiling, a nil metrics sink
// disables metrics reporting.
func New(
	config *signway.ServerConfig,
	reg registry.Registry,
	fwd *forwarder.Forwarder,
	guard *forwarder.ConcurrencyGuard,
	metrics Metrics,
) *Handler {
	return &Handler{config: config, registry: reg, forwarder: fwd, guard: guard, metrics: metrics}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := signway.WithGeneratedRequestID(r.Context())
	ctx = signway.WithStartTime(ctx, time.Now())
	r = r.WithContext(ctx)

	logger := h.config.Logger.WithField("request_id", signway.RequestIDFromContext(ctx))

	result, verr := signway.Verify(ctx, signway.VerifyRequest{
		Method:  r.Method,
		Host:    r.Host,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: r.Header,
		Shape:   h.config.HostShape,
		Skew:    h.config.ClockSkew,
	}, h.registry)
	if verr != nil {
		if h.metrics != nil {
			h.metrics.ObserveVerify(verr.Kind)
		}
		logger.WithFields(logrus.Fields{
			"failure_kind": verr.Kind.String(),
			"detail":       verr.Detail,
		}).Warn("signway: rejected request")
		writeError(w, verr.Kind.StatusCode(), verr.Message)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveVerify(signway.FailureNone)
	}

	logger = logger.WithField("client_id", result.Client.ID)

	release, err := h.acquire(result.Client.ID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveConcurrencyDenied()
		}
		logger.Warn("signway: rejected request, client at concurrency ceiling")
		writeError(w, http.StatusTooManyRequests, "too many concurrent requests")
		return
	}
	defer release()

	target := h.upstreamTarget(r, result)

	if h.metrics != nil {
		h.metrics.StreamStarted()
		defer h.metrics.StreamEnded()
	}

	forwardStart := time.Now()
	res, ferr := h.forwarder.Forward(w, r, target, result.Client.HeaderOverlay)
	duration := time.Since(forwardStart)
	if ferr != nil {
		var fe *signway.ForwardError
		if e, ok := asForwardError(ferr); ok {
			fe = e
		}
		if h.metrics != nil && fe != nil {
			h.metrics.ObserveForward(fe.Kind, fe.BytesForwarded, duration)
		}
		logger.WithError(ferr).Warn("signway: forwarding failed")
		if fe != nil && res.StatusCode == 0 {
			writeError(w, fe.Kind.StatusCode(), "bad gateway")
			return
		}
		// The upstream status is already committed to w: abort the
		// connection so the caller sees a truncated response rather than
		// a cleanly completed one.
		panic(http.ErrAbortHandler)
	}
	if h.metrics != nil {
		h.metrics.ObserveForward(signway.ForwardFailureNone, res.BytesForwarded, duration)
	}
}

func (h *Handler) acquire(clientID string) (func(), error) {
	if h.guard == nil {
		return func() {}, nil
	}
	return h.guard.Acquire(clientID)
}

// upstreamTarget builds the URL the Forwarder dials: the resolved
// upstream host plus the inbound path and query, with every X-Sw-*
// signing parameter stripped.
func (h *Handler) upstreamTarget(r *http.Request, result *signway.VerifyResult) *url.URL {
	host := r.Host
	if h.config.HostShape == signway.HostShapeInParameter {
		host = result.Params.Host
	}

	query := r.URL.Query()
	for name := range query {
		if strings.HasPrefix(name, signParamPrefix) {
			delete(query, name)
		}
	}

	scheme := result.Params.Scheme
	if scheme == "" {
		scheme = "https"
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}
}

func asForwardError(err error) (*signway.ForwardError, bool) {
	fe, ok := err.(*signway.ForwardError)
	return fe, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
