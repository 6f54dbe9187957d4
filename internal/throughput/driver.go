// Package throughput implements the concurrent download/upload saturation
// engine (spec §4.5): a fixed worker pool over persistent connections,
// converting byte counts and wall-clock windows into a throughput figure.
package throughput

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/abhayap/speedtest-go/internal/transport"
)

const workerReadBufferSize = 80 * 1024

// Result is the outcome of one Run call.
type Result struct {
	ThroughputMbps float64
	TotalBytes     int64
	ElapsedSeconds float64
}

// Run saturates server's throughput endpoint in the given direction for up
// to profile.MaxDurationMs, using profile.Concurrency workers each holding
// one persistent connection for their lifetime. cb is invoked once per
// completed request (spec §4.5's progress contract).
func Run(ctx context.Context, server model.ServerRecord, profile model.TestProfile, direction model.Direction, ifaceName string, cb model.ProgressFunc) (*Result, error) {
	totalUnits := profile.TotalUnits()
	if totalUnits <= 0 {
		return nil, errs.New(errs.ConfigError, "throughput.Run", nil)
	}

	queue := make(chan int, totalUnits)
	for rep := 0; rep < profile.Repetitions; rep++ {
		for _, size := range profile.PayloadSizes {
			queue <- size
		}
	}
	close(queue)

	deadline := time.Duration(profile.MaxDurationMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, deadline+5*time.Second)
	defer cancel()

	var totalBytes atomic.Int64
	var completed, failed atomic.Int64
	var earliestStartNanos atomic.Int64
	var latestEndNanos atomic.Int64
	earliestStartNanos.Store(int64(^uint64(0) >> 1)) // max int64

	stopCh := make(chan struct{})
	timer := time.AfterFunc(deadline, func() { close(stopCh) })
	defer timer.Stop()

	var wg sync.WaitGroup
	var connectErrOnce sync.Once
	var connectErr error

	for w := 0; w < profile.Concurrency; w++ {
		conn, err := transport.Connect(runCtx, server.Host, isTLS(server.URL), ifaceName)
		if err != nil {
			connectErrOnce.Do(func() { connectErr = err })
			continue
		}

		wg.Add(1)
		go func(c *transport.Conn) {
			defer wg.Done()
			defer c.Close()
			runWorker(runCtx, c, queue, stopCh, direction, &totalBytes, &completed, &failed, &earliestStartNanos, &latestEndNanos, cb)
		}(conn)
	}

	wg.Wait()

	finalBytes := totalBytes.Load()
	doneCount := completed.Load()
	failCount := failed.Load()

	if finalBytes == 0 {
		if connectErr != nil {
			return nil, connectErr
		}
		return nil, errs.New(errs.MeasurementFailed, "throughput.Run", nil)
	}

	total := doneCount + failCount
	if total > 0 && float64(failCount)/float64(total) > 0.5 {
		return nil, errs.New(errs.MeasurementFailed, "throughput.Run", nil)
	}

	start := earliestStartNanos.Load()
	end := latestEndNanos.Load()
	elapsedSeconds := float64(end-start) / 1e9
	if elapsedSeconds <= 0 {
		elapsedSeconds = deadline.Seconds()
	}

	mbps := (float64(finalBytes) * 8) / (elapsedSeconds * 1_000_000)

	return &Result{
		ThroughputMbps: mbps,
		TotalBytes:     finalBytes,
		ElapsedSeconds: elapsedSeconds,
	}, nil
}

func runWorker(
	ctx context.Context,
	conn *transport.Conn,
	queue <-chan int,
	stopCh <-chan struct{},
	direction model.Direction,
	totalBytes *atomic.Int64,
	completed, failed *atomic.Int64,
	earliestStartNanos, latestEndNanos *atomic.Int64,
	cb model.ProgressFunc,
) {
	buf := make([]byte, workerReadBufferSize)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		size, ok := <-queue
		if !ok {
			return // queue drained: one of the two stop conditions
		}

		start := time.Now()
		markMin(earliestStartNanos, start.UnixNano())

		ok2 := doOne(ctx, conn, direction, size, buf, totalBytes)

		end := time.Now()
		markMax(latestEndNanos, end.UnixNano())

		if ok2 {
			completed.Add(1)
		} else {
			failed.Add(1)
		}
		if cb != nil {
			cb(ok2)
		}
	}
}

func doOne(ctx context.Context, conn *transport.Conn, direction model.Direction, size int, buf []byte, totalBytes *atomic.Int64) bool {
	if direction == model.Upload {
		return doUpload(ctx, conn, size, totalBytes)
	}
	return doDownload(ctx, conn, size, buf, totalBytes)
}

func doDownload(ctx context.Context, conn *transport.Conn, size int, buf []byte, totalBytes *atomic.Int64) bool {
	url := conn.URL(downloadPath(size))
	status, _, body, _, err := conn.GET(ctx, url, map[string]string{"User-Agent": userAgent})
	if err != nil {
		return false
	}
	defer body.Close()

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			totalBytes.Add(int64(n))
		}
		if rerr != nil {
			break
		}
	}
	return status == http.StatusOK
}

func doUpload(ctx context.Context, conn *transport.Conn, size int, totalBytes *atomic.Int64) bool {
	payload := uploadBody(size)
	cr := &countingReader{r: bytes.NewReader(payload), counter: totalBytes}

	url := conn.URL("/upload.php")
	status, _, body, _, err := conn.POST(ctx, url, map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "application/x-www-form-urlencoded",
	}, cr, int64(len(payload)))
	if err != nil {
		return false
	}
	defer body.Close()
	drain(body)
	return status == http.StatusOK
}

func markMin(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v >= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

func markMax(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v <= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}
