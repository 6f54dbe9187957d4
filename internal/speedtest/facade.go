package speedtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhayap/speedtest-go/internal/catalog"
	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/geo"
	"github.com/abhayap/speedtest-go/internal/latencyprobe"
	"github.com/abhayap/speedtest-go/internal/logging"
	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/abhayap/speedtest-go/internal/profile"
	"github.com/abhayap/speedtest-go/internal/qualityprobe"
	"github.com/abhayap/speedtest-go/internal/share"
	"github.com/abhayap/speedtest-go/internal/throughput"
	"github.com/abhayap/speedtest-go/internal/transport"
)

// Run sequences every phase of one measurement against opts, emitting a
// Measurement on opts.OnMeasurement as each completes. A failure in server
// selection, latency/jitter, download or upload aborts the run and returns
// that error. Failures of the client-info fetch, the quality catalog, the
// packet-loss probe, the preflight and the share image are logged (or, for
// the preflight, ignored) and the run continues.
func Run(ctx context.Context, opts Options, log *logging.Logger) (*Result, error) {
	if log == nil {
		log = logging.Nop()
	}
	if opts.ConfigOverridePath != "" {
		if err := profile.LoadOverride(opts.ConfigOverridePath); err != nil {
			return nil, errs.New(errs.ConfigError, "speedtest.Run", err)
		}
	}

	result := &Result{}

	httpTransport, err := transport.New(transport.Config{Interface: opts.Interface})
	if err != nil {
		return nil, err
	}
	defer httpTransport.CloseIdleConnections()

	cat := catalog.New(httpTransport.Client())

	log.WithComponent("facade").Debug("fetching client info")
	client, err := cat.FetchClientInfo(ctx)
	if err != nil {
		log.WithComponent("facade").WithError(err).Warn("client info fetch failed, continuing without geo context")
	}
	result.Client = client

	testServer, qualityServer, err := resolveServers(ctx, opts, cat, client, httpTransport, log)
	if err != nil {
		return nil, err
	}
	result.TestServer = testServer
	result.QualityServer = qualityServer

	if !opts.SkipLatency {
		prober := latencyprobe.New(httpTransport.Client())
		jitter, err := prober.Jitter(ctx, testServer, 0)
		if err != nil {
			return nil, err
		}
		result.LatencyMs = testServer.LatencyMs
		result.JitterMs = jitter
		emit(opts, model.Measurement{Kind: model.MeasurementLatency, Value: result.LatencyMs, Unit: "ms"})
		emit(opts, model.Measurement{Kind: model.MeasurementJitter, Value: result.JitterMs, Unit: "ms"})
	}

	if !opts.SkipQuality && qualityServer.QualityEndpoint != "" {
		lossPc, err := qualityprobe.PacketLoss(ctx, qualityServer, 0)
		if err != nil {
			log.WithComponent("facade").WithError(err).Warn("packet loss probe failed, continuing")
		} else {
			result.PacketLossPc = lossPc
			emit(opts, model.Measurement{Kind: model.MeasurementPacketLoss, Value: float64(lossPc), Unit: "%"})
		}
	}

	preflight, err := throughput.Run(ctx, testServer.ServerRecord, profile.PreflightProfile, model.Download, opts.Interface, nil)
	var preflightMbps float64
	if err == nil {
		preflightMbps = preflight.ThroughputMbps
	}
	downloadProfile, uploadProfile := profile.Select(preflightMbps)

	if !opts.SkipDownload {
		dl, err := throughput.Run(ctx, testServer.ServerRecord, downloadProfile, model.Download, opts.Interface, opts.OnProgress)
		if err != nil {
			return nil, err
		}
		result.DownloadMbps = dl.ThroughputMbps
		emit(opts, model.Measurement{Kind: model.MeasurementDownload, Value: result.DownloadMbps, Unit: "Mbps"})
	}

	if !opts.SkipUpload {
		ul, err := throughput.Run(ctx, testServer.ServerRecord, uploadProfile, model.Upload, opts.Interface, opts.OnProgress)
		if err != nil {
			return nil, err
		}
		result.UploadMbps = ul.ThroughputMbps
		emit(opts, model.Measurement{Kind: model.MeasurementUpload, Value: result.UploadMbps, Unit: "Mbps"})
	}

	if opts.GenerateShareImage {
		url, err := share.ImageURL(share.Params{
			Client:       result.Client,
			Server:       result.TestServer,
			DownloadMbps: result.DownloadMbps,
			UploadMbps:   result.UploadMbps,
			LatencyMs:    result.LatencyMs,
		})
		if err != nil {
			log.WithComponent("facade").WithError(err).Warn("share image generation failed, continuing")
		} else {
			result.ShareImageURL = url
		}
	}

	return result, nil
}

// resolveServers handles the three discovery modes: explicit test/ping
// server override, or full catalog fetch + geo-rank + latency selection.
func resolveServers(ctx context.Context, opts Options, cat *catalog.Client, client model.ClientInfo, tr *transport.Transport, log *logging.Logger) (model.RankedServer, model.ServerRecord, error) {
	if opts.TestServerAddr != "" {
		server := model.RankedServer{
			ServerRecord: model.ServerRecord{
				Host: opts.TestServerAddr,
				URL:  schemeURL(opts.TestServerAddr),
			},
		}

		// An explicit --test-server still gets a real latency probe (spec
		// §4.7/§8 scenario 1; original_source/main.cpp calls sp.latency()
		// unconditionally regardless of how the server was chosen).
		prober := latencyprobe.New(tr.Client())
		probed, err := prober.BestServer(ctx, []model.RankedServer{server}, 1, 0, nil)
		if err != nil {
			return model.RankedServer{}, model.ServerRecord{}, err
		}

		quality := model.ServerRecord{}
		if opts.PingServerAddr != "" {
			quality.QualityEndpoint = opts.PingServerAddr
		}
		return probed, quality, nil
	}

	servers, err := cat.FetchThroughputCatalog(ctx)
	if err != nil {
		return model.RankedServer{}, model.ServerRecord{}, err
	}

	ranked := geo.Rank(client, servers)
	if len(ranked) == 0 {
		return model.RankedServer{}, model.ServerRecord{}, errs.New(errs.CatalogEmpty, "speedtest.resolveServers", nil)
	}

	prober := latencyprobe.New(tr.Client())
	best, err := prober.BestServer(ctx, ranked, 0, 0, opts.OnProgress)
	if err != nil {
		return model.RankedServer{}, model.ServerRecord{}, err
	}

	quality := model.ServerRecord{}
	if opts.PingServerAddr != "" {
		quality.QualityEndpoint = opts.PingServerAddr
	} else {
		qservers, err := cat.FetchQualityCatalog(ctx)
		if err != nil {
			log.WithComponent("facade").WithError(err).Warn("quality catalog fetch failed, packet loss disabled")
		} else {
			qranked := geo.Rank(client, qservers)
			if len(qranked) > 0 {
				quality = qranked[0].ServerRecord
			}
		}
	}

	return best, quality, nil
}

func schemeURL(hostport string) string {
	if strings.Contains(hostport, "://") {
		return hostport
	}
	return fmt.Sprintf("http://%s", hostport)
}

func emit(opts Options, m model.Measurement) {
	if opts.OnMeasurement != nil {
		opts.OnMeasurement(m)
	}
}
