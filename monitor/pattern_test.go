package monitor

import (
	"testing"
	"time"
)

func at(seconds int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(seconds) * time.Second)
}

func TestAnalyzePattern_RegularInterval(t *testing.T) {
	corrections := []time.Time{at(0), at(600), at(1195), at(1810)} // ~10 min apart
	result := AnalyzePattern(corrections)
	if !result.HasPattern {
		t.Errorf("AnalyzePattern() HasPattern = false, want true for regular ~600s spacing")
	}
	if result.MedianInterval < 590*time.Second || result.MedianInterval > 610*time.Second {
		t.Errorf("AnalyzePattern() MedianInterval = %v, want ~600s", result.MedianInterval)
	}
}

func TestAnalyzePattern_NoPattern(t *testing.T) {
	corrections := []time.Time{at(0), at(50), at(900), at(920), at(5000)}
	result := AnalyzePattern(corrections)
	if result.HasPattern {
		t.Error("AnalyzePattern() HasPattern = true for irregular spacing, want false")
	}
}

func TestAnalyzePattern_FiltersEchoes(t *testing.T) {
	// Two corrections 1s apart collapse into one before interval analysis.
	corrections := []time.Time{at(0), at(1), at(600), at(1200)}
	result := AnalyzePattern(corrections)
	if !result.HasPattern {
		t.Error("AnalyzePattern() should detect the pattern once the echo at t=1 is filtered out")
	}
}

func TestAnalyzePattern_TooFewPoints(t *testing.T) {
	result := AnalyzePattern([]time.Time{at(0)})
	if result.HasPattern {
		t.Error("AnalyzePattern() with a single correction should never report a pattern")
	}
}

func TestShouldAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		corrections int
		duration   time.Duration
		want       bool
	}{
		{"too few corrections", 2, 3000 * time.Second, false},
		{"too short duration", 10, 600 * time.Second, false},
		{"low rate", 4, 3600 * time.Second, false}, // 4/h, not > 5
		{"qualifies", 10, 3600 * time.Second, true}, // 10/h
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAnalyze(tt.corrections, tt.duration); got != tt.want {
				t.Errorf("ShouldAnalyze(%d, %v) = %v, want %v", tt.corrections, tt.duration, got, tt.want)
			}
		})
	}
}
