package classifier

import (
	"slices"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
)

// Result is one mode's standing for a trip.
type Result struct {
	Mode      mode.TransportMode `json:"mode"`
	Score     float64            `json:"score"`
	Threshold float64            `json:"threshold"`
	Eligible  bool               `json:"eligible"`
}

// SortResults orders by score, greatest first.
// Ties prefer the lesser mode, eg. Walking before Car.
func SortResults(a, b Result) int {
	if a.Score > b.Score {
		return -1
	} else if a.Score < b.Score {
		return 1
	} else if a.Mode < b.Mode {
		return -1
	} else if a.Mode > b.Mode {
		return 1
	}
	return 0
}

// Rank scores every modelled mode, best first.
func Rank(metrics features.Metrics, models calibration.Models, strategy Strategy) []Result {
	out := make([]Result, 0, len(models))
	for _, m := range models.Modes() {
		model := models[m]
		score := ScoreModel(metrics, model, strategy)
		out = append(out, Result{
			Mode:      m,
			Score:     score,
			Threshold: model.ConfidenceThreshold,
			Eligible:  score >= model.ConfidenceThreshold,
		})
	}
	slices.SortStableFunc(out, SortResults)
	return out
}

// DetectMetrics returns the best eligible mode for the metrics, or Unknown.
func DetectMetrics(metrics features.Metrics, models calibration.Models, strategy Strategy) mode.TransportMode {
	for _, r := range Rank(metrics, models, strategy) {
		if r.Eligible {
			return r.Mode
		}
	}
	return mode.Unknown
}

// Detect classifies a trip's samples. No samples or no models give Unknown.
func Detect(samples []features.Sample, models calibration.Models, strategy Strategy) mode.TransportMode {
	if len(models) == 0 {
		return mode.Unknown
	}
	metrics, ok := features.Aggregate(samples)
	if !ok {
		return mode.Unknown
	}
	return DetectMetrics(metrics, models, strategy)
}

// Classify extracts a trip's samples and detects its mode.
func Classify(t *trip.Trip, models calibration.Models, strategy Strategy) mode.TransportMode {
	return Detect(features.ExtractTrip(t), models, strategy)
}
