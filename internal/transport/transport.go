// Package transport implements the HTTP/HTTPS exchange layer (spec §4.1):
// request/response over persistent connections, with connect/first-byte/
// last-byte timing hooks, and an explicit connection lifetime so throughput
// workers can reuse one socket across many requests instead of paying a
// handshake per request.
//
// There is a single Transport type parameterized by a TLS capability and an
// optional bound network interface; callers never need a separate HTTP vs.
// HTTPS type hierarchy.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/abhayap/speedtest-go/internal/errs"
)

// Timings records the three byte-level hooks spec §4.1 requires.
type Timings struct {
	ConnectDone time.Time
	FirstByte   time.Time
	LastByte    time.Time
}

// Config parameterizes transport construction.
type Config struct {
	// Interface optionally binds outbound dials to a named network
	// interface's first IPv4 address.
	Interface string
	// MaxConnsPerHost bounds how many persistent connections a Transport
	// will hold open to one origin; throughput workers each get their
	// own Transport, so this is usually 1.
	MaxConnsPerHost int
	// DialTimeout bounds the TCP (and TLS, if any) handshake.
	DialTimeout time.Duration
}

// Transport is a reusable HTTP/HTTPS client bound to one configuration.
// It forces HTTP/1.1 (one TCP connection per logical worker, no multiplexed
// streams) because the throughput driver's byte accounting assumes serial
// requests on a known connection count.
type Transport struct {
	client *http.Client
}

// New builds a Transport per cfg. If cfg.Interface is set, outbound dials
// are bound to that interface's address; if it cannot be resolved, New
// fails fast rather than silently falling back to the default route.
func New(cfg Config) (*Transport, error) {
	dialer := &net.Dialer{
		Timeout:   orDefault(cfg.DialTimeout, 30*time.Second),
		KeepAlive: 30 * time.Second,
	}
	dialer.Control = setSocketBuffers

	if cfg.Interface != "" {
		addr, err := ResolveInterfaceAddr(cfg.Interface)
		if err != nil {
			return nil, errs.New(errs.ConfigError, "transport.New", err)
		}
		dialer.LocalAddr = addr
	}

	maxConns := cfg.MaxConnsPerHost
	if maxConns <= 0 {
		maxConns = 1
	}

	t := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   false,
		TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
		MaxIdleConns:        maxConns + 4,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     0, // unbounded; the caller's worker count is the real limit
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: orDefault(cfg.DialTimeout, 30*time.Second),
		DisableCompression:  true,
	}

	return &Transport{client: &http.Client{Transport: t}}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Client exposes the underlying *http.Client for callers (such as the
// catalog client) that only need request/response semantics without the
// explicit Connect/Close lifetime below.
func (t *Transport) Client() *http.Client { return t.client }

// CloseIdleConnections releases pooled connections, used when a Transport's
// owner (a worker, a probe loop) is done with it.
func (t *Transport) CloseIdleConnections() { t.client.CloseIdleConnections() }

// Do executes req with a ClientTrace recording connect/first-byte timings,
// returning the response alongside those Timings. LastByte is not known
// until the caller finishes draining the body; set Timings.LastByte once
// done.
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, *Timings, error) {
	timings := &Timings{}
	trace := &httptrace.ClientTrace{
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				timings.ConnectDone = time.Now()
			}
		},
		GotFirstResponseByte: func() {
			timings.FirstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(ctx, trace))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, timings, classify(err)
	}
	return resp, timings, nil
}

// GET issues a GET request with the given headers and returns the status,
// response headers, the still-open body (caller must close it), and the
// connect/first-byte timings. LastByte must be stamped by the caller after
// it finishes reading the body.
func (t *Transport) GET(ctx context.Context, url string, headers map[string]string) (int, http.Header, io.ReadCloser, *Timings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, nil, errs.New(errs.ProtocolError, "transport.GET", err)
	}
	applyHeaders(req, headers)

	resp, timings, err := t.Do(ctx, req)
	if err != nil {
		return 0, nil, nil, timings, err
	}
	return resp.StatusCode, resp.Header, resp.Body, timings, nil
}

// POST issues a POST request with a body of the given length.
func (t *Transport) POST(ctx context.Context, url string, headers map[string]string, body io.Reader, contentLength int64) (int, http.Header, io.ReadCloser, *Timings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, nil, nil, errs.New(errs.ProtocolError, "transport.POST", err)
	}
	req.ContentLength = contentLength
	applyHeaders(req, headers)

	resp, timings, err := t.Do(ctx, req)
	if err != nil {
		return 0, nil, nil, timings, err
	}
	return resp.StatusCode, resp.Header, resp.Body, timings, nil
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// classify maps a transport-level error to a NetworkError kind per spec §4.1.
func classify(err error) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.NetworkTimeout, "transport", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.New(errs.NetworkTimeout, "transport", err)
	}
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) || strings.Contains(err.Error(), "tls:") {
		return errs.New(errs.NetworkTLS, "transport", err)
	}
	return errs.New(errs.NetworkIO, "transport", err)
}

// ResolveInterfaceAddr finds the first IPv4 address bound to the named
// network interface and returns it as a dial-local address. Used to pin
// measurement traffic to a specific WAN interface on multi-homed hosts.
func ResolveInterfaceAddr(name string) (*net.TCPAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("interface %q addrs: %w", name, err)
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.To4() == nil {
			continue
		}
		return &net.TCPAddr{IP: ip}, nil
	}
	return nil, fmt.Errorf("interface %q has no IPv4 address", name)
}
