package output

import (
	"testing"

	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/abhayap/speedtest-go/internal/speedtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *speedtest.Result {
	return &speedtest.Result{
		Client: model.ClientInfo{IP: "203.0.113.5", ISP: "Example ISP", Lat: 40.7128, Lon: -74.0060},
		TestServer: model.RankedServer{
			ServerRecord: model.ServerRecord{Host: "s1.example.com:8080"},
			DistanceKM:   12.34,
		},
		QualityServer: model.ServerRecord{Host: "q1.example.com:8080", Lat: 40.71, Lon: -74.00},
		LatencyMs:     15.5,
		JitterMs:      1.2,
		PacketLossPc:  2,
		DownloadMbps:  123.456,
		UploadMbps:    45.6,
		ShareImageURL: "https://www.speedtest.net/api/embed/image.php?key=abc",
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	result := sampleResult()
	text := Format(result)

	kv, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.5", kv["IP"])
	assert.Equal(t, "s1.example.com:8080", kv["TEST_SERVER_HOST"])
	assert.Equal(t, "15.50", kv["LATENCY"])
	assert.Equal(t, "123.46", kv["DOWNLOAD_SPEED"])
	assert.Equal(t, "2", kv["PACKET_LOSS"])
	assert.Equal(t, result.ShareImageURL, kv["IMAGE_URL"])
}

func TestFormatOmitsImageURLWhenAbsent(t *testing.T) {
	result := sampleResult()
	result.ShareImageURL = ""
	text := Format(result)

	kv, err := Parse(text)
	require.NoError(t, err)
	_, present := kv["IMAGE_URL"]
	assert.False(t, present)
}

func TestFormatOmitsPacketLossWhenQualitySkipped(t *testing.T) {
	result := sampleResult()
	result.QualityServer = model.ServerRecord{}
	result.PacketLossPc = 0
	text := Format(result)

	kv, err := Parse(text)
	require.NoError(t, err)
	_, present := kv["PACKET_LOSS"]
	assert.False(t, present)
	_, present = kv["QUALITY_SERVER_HOST"]
	assert.False(t, present)
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse("NOT_A_VALID_LINE\n")
	assert.Error(t, err)
}
