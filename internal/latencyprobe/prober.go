// Package latencyprobe selects the lowest-latency candidate server and
// measures jitter against it (spec §4.4). Each probe is a lightweight GET
// against the server's "latency.txt" path; only timing, not body content,
// matters.
package latencyprobe

import (
	"context"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/model"
)

const (
	defaultSampleSize  = 10
	defaultProbeCount  = 3
	defaultJitterCount = 20
	probeTimeout       = 10 * time.Second
	latencyPath        = "/latency.txt"
)

// Prober issues latency probes over a caller-supplied *http.Client. One
// Prober is reused across candidates; each probe opens and reuses its own
// connection via the client's transport pooling.
type Prober struct {
	client *http.Client
}

// New returns a Prober that issues requests over client.
func New(client *http.Client) *Prober {
	return &Prober{client: client}
}

// BestServer probes up to sampleSize candidates (in ranker order), each
// with probeCount round-trips, and returns the candidate whose mean of the
// fastest half of its successful round-trips is smallest. cb is invoked
// once per candidate: true if at least one probe to it succeeded, false if
// every probe failed; a candidate with only some failed probes still
// reports true. Returns NoServerReachable if every candidate fails.
func (p *Prober) BestServer(ctx context.Context, candidates []model.RankedServer, sampleSize, probeCount int, cb model.ProgressFunc) (model.RankedServer, error) {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	if probeCount <= 0 {
		probeCount = defaultProbeCount
	}
	if sampleSize > len(candidates) {
		sampleSize = len(candidates)
	}
	pool := candidates[:sampleSize]

	results := make([]model.RankedServer, len(pool))
	ok := make([]bool, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sampleSize)
	var mu sync.Mutex

	for i, candidate := range pool {
		i, candidate := i, candidate
		g.Go(func() error {
			mean, err := p.probeMean(gctx, candidate.URL, probeCount)
			mu.Lock()
			if err == nil {
				candidate.LatencyMs = mean
				results[i] = candidate
				ok[i] = true
			}
			mu.Unlock()
			if cb != nil {
				cb(err == nil)
			}
			return nil // never fail-fast: one bad candidate shouldn't cancel the rest
		})
	}
	_ = g.Wait()

	best := -1
	for i := range results {
		if !ok[i] {
			continue
		}
		if best == -1 || results[i].LatencyMs < results[best].LatencyMs {
			best = i
		}
	}
	if best == -1 {
		return model.RankedServer{}, errs.New(errs.NoServerReachable, "latencyprobe.BestServer", nil)
	}
	return results[best], nil
}

// probeMean issues probeCount round-trips against url+latencyPath and
// returns the mean of the fastest half (spec §4.4's K=N/2 default).
func (p *Prober) probeMean(ctx context.Context, baseURL string, probeCount int) (float64, error) {
	samples := make([]float64, 0, probeCount)
	for i := 0; i < probeCount; i++ {
		ms, err := p.probeOnce(ctx, baseURL)
		if err != nil {
			continue // one failed probe doesn't sink the whole candidate
		}
		samples = append(samples, ms)
	}
	if len(samples) == 0 {
		return 0, errs.New(errs.NetworkTimeout, "latencyprobe.probeMean", nil)
	}
	sort.Float64s(samples)
	k := len(samples) / 2
	if k == 0 {
		k = 1
	}
	var sum float64
	for _, v := range samples[:k] {
		sum += v
	}
	return sum / float64(k), nil
}

func (p *Prober) probeOnce(ctx context.Context, baseURL string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+latencyPath, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	discard(resp)
	elapsed := time.Since(start).Seconds() * 1000

	if resp.StatusCode != http.StatusOK {
		return 0, errs.New(errs.NetworkIO, "latencyprobe.probeOnce", nil)
	}
	return elapsed, nil
}

// Jitter issues `samples` sequential probes on one persistent connection
// (no concurrency — jitter is defined over consecutive samples in time
// order) and returns the mean absolute difference between consecutive
// latencies, in milliseconds.
func (p *Prober) Jitter(ctx context.Context, server model.RankedServer, samples int) (float64, error) {
	if samples <= 0 {
		samples = defaultJitterCount
	}

	latencies := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		ms, err := p.probeOnce(ctx, server.URL)
		if err != nil {
			continue
		}
		latencies = append(latencies, ms)
	}
	if len(latencies) < 2 {
		return 0, errs.New(errs.NetworkTimeout, "latencyprobe.Jitter", nil)
	}

	var sum float64
	for i := 1; i < len(latencies); i++ {
		sum += math.Abs(latencies[i] - latencies[i-1])
	}
	return sum / float64(len(latencies)-1), nil
}

func discard(resp *http.Response) {
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}
