package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideDoc is the YAML shape for --config: one entry per tier, in
// ascending preflight order. The last entry's MaxPreflightMbps is ignored:
// that entry always has no upper bound, matching the compiled-in table.
type overrideDoc struct {
	Tiers []struct {
		Label             string `yaml:"label"`
		MaxPreflightMbps  float64 `yaml:"max_preflight_mbps"`
		DownloadSizesKB   []int  `yaml:"download_sizes_kb"`
		DownloadConcurr   int    `yaml:"download_concurrency"`
		UploadSizesKB     []int  `yaml:"upload_sizes_kb"`
		UploadConcurrency int    `yaml:"upload_concurrency"`
		MaxDurationMs     int    `yaml:"max_duration_ms"`
	} `yaml:"tiers"`
}

// LoadOverride reads a YAML file and replaces the package's tier table.
// It must be called before the first Select call; Select's determinism
// guarantee (spec §8) only holds within one loaded table.
func LoadOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile: read override %q: %w", path, err)
	}

	var doc overrideDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("profile: parse override %q: %w", path, err)
	}
	if len(doc.Tiers) == 0 {
		return fmt.Errorf("profile: override %q defines no tiers", path)
	}

	replacement := make([]kbTier, len(doc.Tiers))
	for i, t := range doc.Tiers {
		maxPreflight := t.MaxPreflightMbps
		if i == len(doc.Tiers)-1 {
			maxPreflight = -1
		}
		replacement[i] = kbTier{
			label:          t.Label,
			maxPreflight:   maxPreflight,
			downloadSizeKB: t.DownloadSizesKB,
			downloadConc:   t.DownloadConcurr,
			uploadSizeKB:   t.UploadSizesKB,
			uploadConc:     t.UploadConcurrency,
			maxDurationMs:  t.MaxDurationMs,
		}
	}

	tiers = replacement
	return nil
}
