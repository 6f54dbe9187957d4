// Package output formats a speedtest.Result as the KEY=VALUE text block
// the CLI prints on stdout (spec §6), and parses it back for round-trip
// verification.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/geo"
	"github.com/abhayap/speedtest-go/internal/speedtest"
)

// Format renders result as newline-separated KEY=VALUE pairs, in the fixed
// order spec §6 specifies. Speed fields always carry two fractional digits.
func Format(result *speedtest.Result) string {
	var b strings.Builder

	writeKV(&b, "IP", result.Client.IP)
	writeKV(&b, "IP_LAT", fmt.Sprintf("%f", result.Client.Lat))
	writeKV(&b, "IP_LON", fmt.Sprintf("%f", result.Client.Lon))
	writeKV(&b, "PROVIDER", result.Client.ISP)

	writeKV(&b, "TEST_SERVER_HOST", result.TestServer.Host)
	writeKV(&b, "TEST_SERVER_DISTANCE", fmt.Sprintf("%.2f", result.TestServer.DistanceKM))

	writeKV(&b, "LATENCY", fmt.Sprintf("%.2f", result.LatencyMs))
	writeKV(&b, "JITTER", fmt.Sprintf("%.2f", result.JitterMs))

	if result.QualityServer.Host != "" {
		qualityDistance := geo.Haversine(result.Client.Lat, result.Client.Lon, result.QualityServer.Lat, result.QualityServer.Lon)
		writeKV(&b, "QUALITY_SERVER_HOST", result.QualityServer.Host)
		writeKV(&b, "QUALITY_SERVER_DISTANCE", fmt.Sprintf("%.2f", qualityDistance))
		writeKV(&b, "PACKET_LOSS", strconv.Itoa(result.PacketLossPc))
	}

	writeKV(&b, "DOWNLOAD_SPEED", fmt.Sprintf("%.2f", result.DownloadMbps))
	writeKV(&b, "UPLOAD_SPEED", fmt.Sprintf("%.2f", result.UploadMbps))

	if result.ShareImageURL != "" {
		writeKV(&b, "IMAGE_URL", result.ShareImageURL)
	}

	return b.String()
}

// FormatText renders a compact one-line-per-metric summary for the default
// verbose output (--output verbose); --output text uses Format instead.
func FormatText(result *speedtest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Server: %s\n", result.TestServer.Host)
	fmt.Fprintf(&b, "Latency: %.2f ms (jitter %.2f ms)\n", result.LatencyMs, result.JitterMs)
	if result.QualityServer.Host != "" {
		fmt.Fprintf(&b, "Packet loss: %d%%\n", result.PacketLossPc)
	}
	fmt.Fprintf(&b, "Download: %.2f Mbps\n", result.DownloadMbps)
	fmt.Fprintf(&b, "Upload: %.2f Mbps\n", result.UploadMbps)
	if result.ShareImageURL != "" {
		fmt.Fprintf(&b, "Share: %s\n", result.ShareImageURL)
	}
	return b.String()
}

// FormatError renders a run failure as a single diagnostic line naming the
// error kind, so the CLI's stderr output is grep-able by kind.
func FormatError(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("error: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("error: %v", err)
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}

// Parse reverses Format, returning the raw key/value pairs as a map keyed
// by KEY; a key that appears more than once keeps its last value.
// It is used by tests to verify the round-trip property (spec §8) and by
// any caller that needs to re-ingest a previously captured result.
func Parse(text string) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("output: malformed line %q", line)
		}
		out[line[:idx]] = line[idx+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
