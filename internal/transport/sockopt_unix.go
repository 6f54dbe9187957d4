//go:build !windows

package transport

import "syscall"

// setSocketBuffers raises the receive buffer for high bandwidth-delay-
// product links (e.g. satellite). SNDBUF is left at the kernel default so
// upload byte counting via the counting reader stays accurate: a large send
// buffer would let the kernel accept bytes the wire hasn't actually carried
// yet, making upload throughput look better than it is.
func setSocketBuffers(network, address string, c syscall.RawConn) error {
	var seterr error
	err := c.Control(func(fd uintptr) {
		if e := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, 2<<20); e != nil {
			seterr = e
		}
	})
	if err != nil {
		return err
	}
	return seterr
}
