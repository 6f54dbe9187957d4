package throughput

import (
	"io"
	"sync/atomic"
)

// countingReader wraps a reader and atomically adds every byte read to a
// shared counter, so upload throughput can be attributed to the instant
// bytes actually leave the client, not when the request returns.
type countingReader struct {
	r       io.Reader
	counter *atomic.Int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.counter.Add(int64(n))
	}
	return n, err
}
