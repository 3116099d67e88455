/*
Package classifier scores a trip's features against per-mode calibration models
and picks the best mode that clears its own confidence threshold.
*/
package classifier

import (
	"math"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
)

// RangeScore is 1 inside [min, max], value/min below and max/value above, clamped to [0, 1].
func RangeScore(v float64, p calibration.FeatureParams) float64 {
	switch {
	case v >= p.Min && v <= p.Max:
		return 1
	case v < p.Min:
		if p.Min <= 0 {
			return 0
		}
		return common.Clamp(v/p.Min, 0, 1)
	default:
		if v <= 0 {
			return 0
		}
		return common.Clamp(p.Max/v, 0, 1)
	}
}

// IdealScore is exp(-1/2 ((v-ideal)/sigma)^2) with sigma a quarter of the range.
// A feature without an ideal falls back to RangeScore.
func IdealScore(v float64, p calibration.FeatureParams) float64 {
	if p.Ideal == nil {
		return RangeScore(v, p)
	}
	sigma := (p.Max - p.Min) / 4
	if sigma <= 0 {
		if v == *p.Ideal {
			return 1
		}
		return 0
	}
	z := (v - *p.Ideal) / sigma
	return math.Exp(-0.5 * z * z)
}

func weightedMean(metrics features.Metrics, model *calibration.Model, fn func(float64, calibration.FeatureParams) float64) float64 {
	sum, weights := 0.0, 0.0
	for i, p := range model.Params() {
		sum += p.Weight * fn(metrics[i], *p)
		weights += p.Weight
	}
	if weights <= 0 {
		return 0
	}
	return sum / weights
}

// ScoreModel scores metrics against a single model.
// The weighted feature mean, plus the model's bias, is clamped to [0, 1] and scaled.
// A nil model scores 0.
func ScoreModel(metrics features.Metrics, model *calibration.Model, strategy Strategy) float64 {
	if model == nil {
		return 0
	}
	var raw float64
	switch strategy {
	case IdealBased:
		raw = weightedMean(metrics, model, IdealScore)
	case Combined:
		blend := model.StrategyBlend
		if math.IsNaN(blend) || blend < 0 || blend > 1 {
			blend = calibration.DefaultStrategyBlend
		}
		raw = blend*weightedMean(metrics, model, RangeScore) +
			(1-blend)*weightedMean(metrics, model, IdealScore)
	default:
		raw = weightedMean(metrics, model, RangeScore)
	}
	return common.Clamp(raw+model.ModeBias, 0, 1) * model.Scale
}

// Score scores metrics against the model for m. Modes without a model score 0.
func Score(metrics features.Metrics, m mode.TransportMode, models calibration.Models, strategy Strategy) float64 {
	return ScoreModel(metrics, models[m], strategy)
}
