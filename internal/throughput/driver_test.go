package throughput

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 50_000))
	}))
	defer srv.Close()

	server := serverFromTestURL(t, srv.URL)
	profile := model.TestProfile{
		Concurrency:   2,
		PayloadSizes:  []int{50_000},
		Repetitions:   4,
		MaxDurationMs: 2000,
	}

	result, err := Run(context.Background(), server, profile, model.Download, "", nil)
	require.NoError(t, err)
	assert.Greater(t, result.TotalBytes, int64(0))
	assert.Greater(t, result.ThroughputMbps, 0.0)
}

func TestRunUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	server := serverFromTestURL(t, srv.URL)
	profile := model.TestProfile{
		Concurrency:   2,
		PayloadSizes:  []int{20_000},
		Repetitions:   4,
		MaxDurationMs: 2000,
	}

	result, err := Run(context.Background(), server, profile, model.Upload, "", nil)
	require.NoError(t, err)
	assert.Greater(t, result.TotalBytes, int64(0))
}

func TestRunFailsWhenServerUnreachable(t *testing.T) {
	server := model.ServerRecord{URL: "http://127.0.0.1:1", Host: "127.0.0.1:1"}
	profile := model.TestProfile{
		Concurrency:   1,
		PayloadSizes:  []int{1000},
		Repetitions:   1,
		MaxDurationMs: 500,
	}

	_, err := Run(context.Background(), server, profile, model.Download, "", nil)
	assert.Error(t, err)
}

func TestRunStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write(make([]byte, 10_000))
	}))
	defer srv.Close()

	server := serverFromTestURL(t, srv.URL)
	profile := model.TestProfile{
		Concurrency:   2,
		PayloadSizes:  []int{10_000},
		Repetitions:   1000,
		MaxDurationMs: 200,
	}

	start := time.Now()
	result, err := Run(context.Background(), server, profile, model.Download, "", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Greater(t, result.TotalBytes, int64(0))
	assert.Less(t, elapsed, 2*time.Second)
}

func serverFromTestURL(t *testing.T, rawURL string) model.ServerRecord {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return model.ServerRecord{URL: rawURL, Host: u.Host}
}
