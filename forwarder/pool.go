package forwarder

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// deadlineConn re-arms a read deadline before every Read, turning a
// fixed idle-read timeout into a rolling one: a connection that keeps
// producing bytes, however slowly spread out, never trips it, but one
// that goes silent for longer than timeout does.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

// poolKey identifies a pooled transport by (scheme, host, port), per
// spec §5 "a connection pool to upstreams keyed by (scheme, host,
// port)".
type poolKey struct {
	scheme string
	host   string
	port   string
}

func poolKeyFor(u *url.URL) poolKey {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return poolKey{scheme: u.Scheme, host: host, port: port}
}

// ConnectionPool caches one *http.Transport per (scheme, host, port),
// bounded to a maximum number of distinct upstreams so a gateway
// fronting many tenants cannot grow an unbounded set of idle
// connections. Each transport keeps its own internal idle-connection
// pool (net/http's default behavior); this cache only decides which
// transport a given upstream reuses.
type ConnectionPool struct {
	transports *lru.Cache[poolKey, *http.Transport]
	connect    time.Duration
	idleRead   time.Duration
}

// NewConnectionPool creates a pool bounded to maxUpstreams distinct
// (scheme, host, port) triples, each dialed with the given connect
// timeout. idleReadTimeout, if positive, is re-armed on every Read of
// every connection the pool dials, so a stalled upstream (silent for
// longer than idleReadTimeout mid-response) is detected without
// bounding the total duration of a long, steadily-flowing stream.
func NewConnectionPool(maxUpstreams int, connectTimeout, idleReadTimeout time.Duration) (*ConnectionPool, error) {
	if maxUpstreams <= 0 {
		maxUpstreams = 256
	}
	pool := &ConnectionPool{connect: connectTimeout, idleRead: idleReadTimeout}
	transports, err := lru.NewWithEvict(maxUpstreams, pool.onEvict)
	if err != nil {
		return nil, fmt.Errorf("forwarder: creating connection pool: %w", err)
	}
	pool.transports = transports
	return pool, nil
}

// onEvict closes idle connections on a transport evicted from the
// cache so its sockets do not linger past the point this pool can
// still reach it.
func (p *ConnectionPool) onEvict(_ poolKey, t *http.Transport) {
	t.CloseIdleConnections()
}

// Transport returns the shared *http.Transport for target's (scheme,
// host, port), creating one on first use.
func (p *ConnectionPool) Transport(target *url.URL) *http.Transport {
	key := poolKeyFor(target)
	if t, ok := p.transports.Get(key); ok {
		return t
	}
	dial := (&net.Dialer{Timeout: p.connect}).DialContext
	idleRead := p.idleRead
	t := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, timeout: idleRead}, nil
		},
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	p.transports.Add(key, t)
	return t
}

// Close closes idle connections on every pooled transport.
func (p *ConnectionPool) Close() {
	for _, key := range p.transports.Keys() {
		if t, ok := p.transports.Peek(key); ok {
			t.CloseIdleConnections()
		}
	}
}
