package transport

import (
	"context"
	"fmt"
)

// Conn is the explicit-lifetime connection handle spec §4.1 asks for: one
// throughput worker calls Connect once, issues many serial GET/POST calls
// against it, then Close when its lifetime ends. It is a thin wrapper over
// a single-connection Transport — net/http does not expose raw persistent
// sockets, so "one connection" here means "a transport that will never
// pool more than one idle connection to this origin and never multiplexes".
type Conn struct {
	*Transport
	origin string
}

// Connect attempts a single dial (with TLS if useTLS) to hostport and fails
// fast; it does not retry. Callers may retry at their own discretion, per
// spec §4.1's contract.
func Connect(ctx context.Context, hostport string, useTLS bool, ifaceName string) (*Conn, error) {
	t, err := New(Config{Interface: ifaceName, MaxConnsPerHost: 1})
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	origin := fmt.Sprintf("%s://%s", scheme, hostport)

	// Prime the connection now so Connect's failure mode matches "attempts
	// a single TCP handshake and fails fast" rather than deferring the
	// first failure to the caller's first GET/POST.
	status, _, body, _, err := t.GET(ctx, origin+"/", nil)
	if err != nil {
		return nil, err
	}
	if body != nil {
		body.Close()
	}
	_ = status

	return &Conn{Transport: t, origin: origin}, nil
}

// URL joins the connection's origin with path.
func (c *Conn) URL(path string) string {
	return c.origin + path
}

// Close releases the connection's pooled sockets.
func (c *Conn) Close() {
	c.CloseIdleConnections()
}
