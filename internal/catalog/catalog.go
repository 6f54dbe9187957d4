// Package catalog fetches and parses the two XML server catalogs (throughput
// and quality/ping) and the client's geo-IP record (spec §4.2). Parsing
// tolerates unknown attributes — encoding/xml only binds the fields this
// package declares — and entries missing mandatory fields are dropped
// rather than failing the whole fetch.
package catalog

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/model"
)

const (
	userAgent = "speedtest-go/1.0"

	// minServerVersion filters out catalog entries advertising a protocol
	// older than this client speaks (spec §4.2, last paragraph), named
	// after original_source/main.cpp's SPEED_TEST_MIN_SERVER_VERSION.
	minServerVersion = 1
)

// clientInfoURL is a var, not a const, so tests can redirect it at an
// httptest.Server.
var clientInfoURL = "https://www.speedtest.net/speedtest-config.php"

// throughputMirrors are tried in order; the first mirror returning a
// non-empty catalog wins (spec §4.2).
var throughputMirrors = []string{
	"https://www.speedtest.net/speedtest-servers-static.php",
	"https://www.speedtest.net/speedtest-servers.php",
}

var qualityMirrors = []string{
	"https://www.speedtest.net/speedtest-servers-static.php?type=quality",
}

// Client fetches the speedtest.net XML catalogs over a caller-supplied
// *http.Client, retrying transient failures across mirrors.
type Client struct {
	retry *retryablehttp.Client
}

// New builds a catalog Client that issues requests over httpClient.
func New(httpClient *http.Client) *Client {
	r := retryablehttp.NewClient()
	r.HTTPClient = httpClient
	r.RetryMax = 2
	r.Logger = nil // silence retryablehttp's default stdlib logger
	return &Client{retry: r}
}

// FetchClientInfo issues the geo-IP endpoint and parses the client's ip,
// isp, lat, lon attributes.
func (c *Client) FetchClientInfo(ctx context.Context) (model.ClientInfo, error) {
	body, err := c.get(ctx, clientInfoURL)
	if err != nil {
		return model.ClientInfo{}, err
	}
	defer body.Close()

	var doc clientDoc
	if err := xml.NewDecoder(body).Decode(&doc); err != nil {
		return model.ClientInfo{}, errs.New(errs.ProtocolError, "catalog.FetchClientInfo", err)
	}

	lat, lon := parseFloat(doc.Client.Lat), parseFloat(doc.Client.Lon)
	if doc.Client.IP == "" {
		return model.ClientInfo{}, errs.New(errs.ProtocolError, "catalog.FetchClientInfo", nil)
	}

	return model.ClientInfo{
		IP:  doc.Client.IP,
		ISP: doc.Client.ISP,
		Lat: lat,
		Lon: lon,
	}, nil
}

// FetchThroughputCatalog tries each mirror in order and returns the first
// non-empty parsed catalog. An empty catalog after all mirrors is not a
// NetworkError; it is reported via errs.CatalogEmpty so the caller can
// treat it as a recoverable absence (spec §4.2).
func (c *Client) FetchThroughputCatalog(ctx context.Context) ([]model.ServerRecord, error) {
	return c.fetchCatalog(ctx, throughputMirrors, false)
}

// FetchQualityCatalog is analogous, returning entries annotated with a
// QualityEndpoint distinct from the throughput URL.
func (c *Client) FetchQualityCatalog(ctx context.Context) ([]model.ServerRecord, error) {
	return c.fetchCatalog(ctx, qualityMirrors, true)
}

func (c *Client) fetchCatalog(ctx context.Context, mirrors []string, requireQuality bool) ([]model.ServerRecord, error) {
	var lastErr error
	for _, mirror := range mirrors {
		body, err := c.get(ctx, mirror)
		if err != nil {
			lastErr = err
			continue
		}

		var doc serversDoc
		decErr := xml.NewDecoder(body).Decode(&doc)
		body.Close()
		if decErr != nil {
			lastErr = errs.New(errs.ProtocolError, "catalog.fetchCatalog", decErr)
			continue
		}

		records := parseServers(doc.Servers, requireQuality)
		if len(records) > 0 {
			return records, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errs.New(errs.CatalogEmpty, "catalog.fetchCatalog", nil)
}

func parseServers(entries []serverXML, requireQuality bool) []model.ServerRecord {
	records := make([]model.ServerRecord, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" || e.Lat == "" || e.Lon == "" || e.ID == "" {
			continue // mandatory fields missing (spec §4.2)
		}
		if requireQuality && e.LineQuality == "" {
			continue
		}
		version := minServerVersion
		if v, err := strconv.Atoi(e.Version); err == nil {
			version = v
		}
		if version < minServerVersion {
			continue
		}
		records = append(records, model.ServerRecord{
			ID:              e.ID,
			URL:             e.URL,
			Host:            e.Host,
			Name:            e.Name,
			Country:         e.Country,
			Sponsor:         e.Sponsor,
			Lat:             parseFloat(e.Lat),
			Lon:             parseFloat(e.Lon),
			QualityEndpoint: e.LineQuality,
			Version:         version,
		})
	}
	return records
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.ProtocolError, "catalog.get", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, errs.New(errs.NetworkIO, "catalog.get", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.New(errs.NetworkIO, "catalog.get", httpStatusError(resp.StatusCode))
	}
	return resp.Body, nil
}

type httpStatusError int

func (e httpStatusError) Error() string {
	return "unexpected HTTP status " + strconv.Itoa(int(e))
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
