package profile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPicksDialUpTier(t *testing.T) {
	download, upload := Select(1.5)
	assert.Equal(t, "dial-up / DSL", download.Label)
	assert.Equal(t, "dial-up / DSL", upload.Label)
	assert.Equal(t, 2, download.Concurrency)
}

func TestSelectPicksCableTier(t *testing.T) {
	download, _ := Select(15)
	assert.Equal(t, "fast DSL / cable", download.Label)
}

func TestSelectFallsThroughToFibreTier(t *testing.T) {
	download, upload := Select(500)
	assert.Equal(t, "fibre / enterprise", download.Label)
	assert.Equal(t, 8, download.Concurrency)
	assert.Equal(t, 8, upload.Concurrency)
}

func TestSelectIsDeterministic(t *testing.T) {
	a, _ := Select(12.3)
	b, _ := Select(12.3)
	assert.Equal(t, a, b)
}

func TestLoadOverrideReplacesTable(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "override-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(`
tiers:
  - label: custom-slow
    max_preflight_mbps: 2
    download_sizes_kb: [100]
    download_concurrency: 1
    upload_sizes_kb: [50]
    upload_concurrency: 1
    max_duration_ms: 5000
  - label: custom-fast
    max_preflight_mbps: 0
    download_sizes_kb: [5000]
    download_concurrency: 6
    upload_sizes_kb: [2000]
    upload_concurrency: 6
    max_duration_ms: 15000
`)
	require.NoError(t, err)
	f.Close()

	original := tiers
	defer func() { tiers = original }()

	require.NoError(t, LoadOverride(f.Name()))

	download, _ := Select(1)
	assert.Equal(t, "custom-slow", download.Label)

	download, _ = Select(100)
	assert.Equal(t, "custom-fast", download.Label)
	assert.Equal(t, 6, download.Concurrency)
}
