package latencyprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestServerPicksFastestCandidate(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer fast.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer slow.Close()

	candidates := []model.RankedServer{
		{ServerRecord: model.ServerRecord{ID: "fast", URL: fast.URL}},
		{ServerRecord: model.ServerRecord{ID: "slow", URL: slow.URL}},
	}

	p := New(fast.Client())
	best, err := p.BestServer(context.Background(), candidates, 2, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "fast", best.ID)
}

func TestBestServerAllUnreachable(t *testing.T) {
	candidates := []model.RankedServer{
		{ServerRecord: model.ServerRecord{ID: "dead1", URL: "http://127.0.0.1:1"}},
		{ServerRecord: model.ServerRecord{ID: "dead2", URL: "http://127.0.0.1:2"}},
	}

	p := New(http.DefaultClient)
	_, err := p.BestServer(context.Background(), candidates, 2, 1, nil)
	assert.Error(t, err)
}

func TestJitterComputesMeanAbsoluteDifference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	server := model.RankedServer{ServerRecord: model.ServerRecord{URL: srv.URL}}
	p := New(srv.Client())

	jitter, err := p.Jitter(context.Background(), server, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, jitter, 0.0)
}

func TestJitterFailsWithTooFewSamples(t *testing.T) {
	server := model.RankedServer{ServerRecord: model.ServerRecord{URL: "http://127.0.0.1:1"}}
	p := New(http.DefaultClient)

	_, err := p.Jitter(context.Background(), server, 3)
	assert.Error(t, err)
}
