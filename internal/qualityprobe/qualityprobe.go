// Package qualityprobe measures packet loss against a quality server's
// line-quality endpoint (spec §4.4, §6's "Quality probe (ping)"). The
// endpoint speaks a small newline-terminated text protocol over a raw TCP
// connection, distinct from the throughput server's HTTP surface.
//
// The exact handshake is an open question in the upstream spec (the "HI"
// greeting is not fully documented in the source). This package's design
// decision, recorded in DESIGN.md, is: connect, send "HELLO <version>\n",
// expect an echoed HELLO line, then for each sample send "PING <seq>\n"
// and expect "PONG <seq>\n" within the per-probe timeout.
package qualityprobe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/model"
)

const (
	protocolVersion   = 1
	defaultSampleSize = 80
	probeTimeout      = 10 * time.Second
	dialTimeout       = 10 * time.Second
)

// probeState is the per-probe state machine named in spec §4.4.
type probeState int

const (
	stateIdle probeState = iota
	stateSent
	stateReceived
	stateTimeout
)

// PacketLoss opens a TCP connection to server's QualityEndpoint, performs
// the HELLO handshake, and issues `samples` sequential PING probes,
// returning the integer percentage that did not receive a matching PONG
// within the per-probe timeout. A connection that errors mid-series is
// re-established once; a second failure aborts and reports the loss rate
// over whatever was collected so far.
func PacketLoss(ctx context.Context, server model.ServerRecord, samples int) (int, error) {
	if samples <= 0 {
		samples = defaultSampleSize
	}
	if server.QualityEndpoint == "" {
		return 0, errs.New(errs.ConfigError, "qualityprobe.PacketLoss", fmt.Errorf("server has no quality endpoint"))
	}

	lost := 0
	completed := 0
	reconnects := 0

	conn, err := dialAndGreet(ctx, server.QualityEndpoint)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	for seq := 0; seq < samples; seq++ {
		state, err := pingOnce(ctx, conn, seq)
		if err != nil {
			// Connection-level failure: try exactly one reconnect.
			conn.Close()
			if reconnects >= 1 {
				break
			}
			reconnects++
			conn, err = dialAndGreet(ctx, server.QualityEndpoint)
			if err != nil {
				break
			}
			lost++
			completed++
			continue
		}
		completed++
		if state != stateReceived {
			lost++
		}
	}

	if completed == 0 {
		return 0, errs.New(errs.NetworkIO, "qualityprobe.PacketLoss", fmt.Errorf("no probes completed"))
	}
	return int(float64(lost) / float64(completed) * 100.0), nil
}

type conn struct {
	nc     net.Conn
	reader *bufio.Reader
}

func (c *conn) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

func dialAndGreet(ctx context.Context, hostport string) (*conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, errs.New(errs.NetworkIO, "qualityprobe.dial", err)
	}

	c := &conn{nc: nc, reader: bufio.NewReader(nc)}

	nc.SetDeadline(time.Now().Add(probeTimeout))
	if _, err := fmt.Fprintf(nc, "HELLO %d\n", protocolVersion); err != nil {
		nc.Close()
		return nil, errs.New(errs.NetworkIO, "qualityprobe.greet", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		nc.Close()
		return nil, errs.New(errs.ProtocolError, "qualityprobe.greet", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(line), "HELLO") {
		nc.Close()
		return nil, errs.New(errs.ProtocolError, "qualityprobe.greet", fmt.Errorf("unexpected greeting %q", line))
	}
	return c, nil
}

// pingOnce sends one PING frame and waits for its matching PONG, returning
// the IDLE->SENT->(RECEIVED|TIMEOUT) outcome. A connection-level error
// (not a timeout) is returned so the caller can reconnect.
func pingOnce(ctx context.Context, c *conn, seq int) (probeState, error) {
	deadline := time.Now().Add(probeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	c.nc.SetDeadline(deadline)

	state := stateIdle
	if _, err := fmt.Fprintf(c.nc, "PING %d\n", seq); err != nil {
		return state, err
	}
	state = stateSent

	line, err := c.reader.ReadString('\n')
	if err != nil {
		var netErr net.Error
		if ok := netErrTimeout(err, &netErr); ok {
			return stateTimeout, nil
		}
		return state, err
	}

	fields := strings.Fields(line)
	if len(fields) == 2 && fields[0] == "PONG" {
		if got, perr := strconv.Atoi(fields[1]); perr == nil && got == seq {
			return stateReceived, nil
		}
	}
	// A malformed or mismatched reply counts as a loss, not a connection
	// failure — the socket is still usable for the next probe.
	return stateTimeout, nil
}

func netErrTimeout(err error, target *net.Error) bool {
	ne, ok := err.(net.Error)
	if ok && ne.Timeout() {
		*target = ne
		return true
	}
	return false
}
