// Package profile implements the adaptive configurator (spec §4.6): it
// maps a preflight download throughput estimate to a labelled TestProfile
// for each direction. The table is immutable process-wide data with no
// initialization-order dependency; an optional YAML override (see
// LoadOverride) replaces it wholesale before the first Select call.
package profile

import "github.com/abhayap/speedtest-go/internal/model"

// kbTier is one row of the preflight table, expressed in kilobytes so it
// reads the same as spec §4.6's table.
type kbTier struct {
	label          string
	maxPreflight   float64 // exclusive upper bound in Mbit/s; -1 (no upper bound) for the last tier
	downloadSizeKB []int
	downloadConc   int
	uploadSizeKB   []int
	uploadConc     int
	maxDurationMs  int
}

const preflightRepetitions = 4

// tiers is the compiled-in default table from spec §4.6. Exact thresholds
// and sizes are a design decision (spec §9), not a wire contract.
var tiers = []kbTier{
	{
		label:          "dial-up / DSL",
		maxPreflight:   4,
		downloadSizeKB: []int{350, 500, 750, 1000, 1500, 2000},
		downloadConc:   2,
		uploadSizeKB:   []int{32, 64, 128, 256, 512, 1024},
		uploadConc:     2,
		maxDurationMs:  20000,
	},
	{
		label:          "fast DSL / cable",
		maxPreflight:   30,
		downloadSizeKB: []int{1500, 2000, 3000, 4000, 6000},
		downloadConc:   4,
		uploadSizeKB:   []int{256, 512, 1024},
		uploadConc:     4,
		maxDurationMs:  20000,
	},
	{
		label:          "fibre / enterprise",
		maxPreflight:   -1, // sentinel: no upper bound
		downloadSizeKB: []int{4000, 8000, 16000, 24000, 32000},
		downloadConc:   8,
		uploadSizeKB:   []int{1024, 4096, 8192},
		uploadConc:     8,
		maxDurationMs:  30000,
	},
}

// PreflightProfile is the fixed, low-cost profile used to measure the
// preflight throughput estimate that Select consumes.
var PreflightProfile = model.TestProfile{
	Label:         "preflight",
	Concurrency:   4,
	PayloadSizes:  []int{1000 * 1000},
	Repetitions:   preflightRepetitions,
	MinDurationMs: 0,
	MaxDurationMs: 5000,
}

// Select returns the download and upload TestProfile for preflightMbps.
// The mapping is a pure function of the compiled-in (or overridden) table:
// the same input always yields the same output (spec §8's config-
// determinism property).
func Select(preflightMbps float64) (download, upload model.TestProfile) {
	tier := tiers[len(tiers)-1]
	for _, t := range tiers {
		if t.maxPreflight > 0 && preflightMbps < t.maxPreflight {
			tier = t
			break
		}
	}

	download = model.TestProfile{
		Label:           tier.label,
		Concurrency:     tier.downloadConc,
		PayloadSizes:    bytesFromKB(tier.downloadSizeKB),
		Repetitions:     1,
		MaxDurationMs:   tier.maxDurationMs,
		UploadBodyStyle: model.PrintableFiller,
	}
	upload = model.TestProfile{
		Label:           tier.label,
		Concurrency:     tier.uploadConc,
		PayloadSizes:    bytesFromKB(tier.uploadSizeKB),
		Repetitions:     1,
		MaxDurationMs:   tier.maxDurationMs,
		UploadBodyStyle: model.PrintableFiller,
	}
	return download, upload
}

func bytesFromKB(kb []int) []int {
	out := make([]int, len(kb))
	for i, v := range kb {
		out[i] = v * 1000
	}
	return out
}
