// Package speedtest is the façade that sequences every phase of one run
// (spec §4.7): client discovery, catalog fetch, geo-ranking, latency
// selection, jitter, packet loss, download, and upload, emitting a
// Measurement per phase alongside the final Result.
package speedtest

import (
	"time"

	"github.com/abhayap/speedtest-go/internal/model"
)

// Options parameterizes one Run call. A zero Options runs every phase
// against the auto-discovered nearest server.
type Options struct {
	// Interface optionally binds outbound dials to a named network
	// interface.
	Interface string

	// TestServerAddr, if set, skips discovery/ranking/selection and runs
	// throughput phases directly against this host:port.
	TestServerAddr string
	// PingServerAddr, if set, skips quality-catalog discovery and probes
	// packet loss directly against this host:port.
	PingServerAddr string

	// SkipLatency, SkipQuality, SkipDownload, SkipUpload let the CLI's
	// --latency/--quality/--download/--upload flags select a subset of
	// phases; all false runs every phase.
	SkipLatency  bool
	SkipQuality  bool
	SkipDownload bool
	SkipUpload   bool

	// GenerateShareImage requests a share-image URL in the Result.
	GenerateShareImage bool

	// ConfigOverridePath, if set, is loaded by internal/profile before the
	// preflight-to-profile mapping runs.
	ConfigOverridePath string

	// OnMeasurement, if set, is invoked once per phase as it completes, in
	// addition to that phase's contribution to Result.
	OnMeasurement func(model.Measurement)
	// OnProgress, if set, is passed through to the phases that report
	// per-unit progress (latency probing, throughput workers).
	OnProgress model.ProgressFunc
}

// Result collects every phase's output for one run. Fields are left at
// their zero value when their phase was skipped.
type Result struct {
	Client model.ClientInfo

	TestServer    model.RankedServer
	QualityServer model.ServerRecord

	LatencyMs    float64
	JitterMs     float64
	PacketLossPc int

	DownloadMbps float64
	UploadMbps   float64

	ShareImageURL string

	StartedAt time.Time
	Duration  time.Duration
}
