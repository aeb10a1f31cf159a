package monitor

import (
	"sort"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
)

// PatternResult summarizes whether Route Guardian corrections over a
// session show a recurring interval, cosmetic output only — it never
// feeds back into the connection logic.
type PatternResult struct {
	// HasPattern is true when at least half the inter-correction
	// intervals fall within PatternTolerance of the median.
	HasPattern bool
	// MedianInterval is the median gap between (echo-filtered)
	// corrections.
	MedianInterval time.Duration
	// PercentWithinTolerance is the share of intervals near the median.
	PercentWithinTolerance float64
}

// StabilityMetric is corrections-per-hour over the session so far,
// matching the original tool's stability_metric. It gates whether
// pattern analysis runs at all: a quiet connection has nothing to
// analyze.
func StabilityMetric(correctionCount int, duration time.Duration) float64 {
	hours := duration.Hours()
	if hours <= 0 {
		return 0
	}
	return float64(correctionCount) / hours
}

// AnalyzePattern filters out corrections within PatternEchoThreshold of
// the previous one (rapid double-corrections from a single flap, not
// independent events), then looks for a recurring interval among what's
// left.
func AnalyzePattern(corrections []time.Time) PatternResult {
	filtered := filterEchoes(corrections, common.PatternEchoThreshold)
	if len(filtered) < 2 {
		return PatternResult{}
	}

	intervals := make([]time.Duration, 0, len(filtered)-1)
	for i := 1; i < len(filtered); i++ {
		intervals = append(intervals, filtered[i].Sub(filtered[i-1]))
	}

	median := medianDuration(intervals)
	within := 0
	for _, iv := range intervals {
		diff := iv - median
		if diff < 0 {
			diff = -diff
		}
		if diff <= common.PatternTolerance {
			within++
		}
	}
	pct := float64(within) / float64(len(intervals)) * 100

	return PatternResult{
		HasPattern:             pct >= 50,
		MedianInterval:         median,
		PercentWithinTolerance: pct,
	}
}

// ShouldAnalyze reports whether enough signal exists to run
// AnalyzePattern at all: a minimum session duration and correction
// count, per the original tool's analysis gate.
func ShouldAnalyze(correctionCount int, duration time.Duration) bool {
	if correctionCount < common.PatternAnalysisMinCorr {
		return false
	}
	if duration <= common.PatternAnalysisMinDur {
		return false
	}
	return StabilityMetric(correctionCount, duration) > 5
}

func filterEchoes(timestamps []time.Time, threshold time.Duration) []time.Time {
	if len(timestamps) == 0 {
		return nil
	}
	out := []time.Time{timestamps[0]}
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Sub(out[len(out)-1]) > threshold {
			out = append(out, timestamps[i])
		}
	}
	return out
}

func medianDuration(durations []time.Duration) time.Duration {
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
