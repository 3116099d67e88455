/*
Package adaptive retunes model hyperparameters from one-vs-rest classification feedback.

Feature weights move toward features that separate a mode's correctly classified trips
from its misclassified ones. Mode bias moves against whichever of the false positive and
false negative rates dominates. The confidence threshold tightens when a mode is too
permissive and loosens when it is too strict.
*/
package adaptive

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
)

const (
	// ThresholdStep is how far one pass moves a confidence threshold.
	ThresholdStep = 0.05

	// epsilon keeps the divergence finite for zero-variance features.
	epsilon = 1e-9
)

// Stats are one mode's one-vs-rest counts.
type Stats struct {
	TruePositives  int     `json:"tp"`
	FalsePositives int     `json:"fp"`
	FalseNegatives int     `json:"fn"`
	TrueNegatives  int     `json:"tn"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	Adjusted       bool    `json:"adjusted"`
}

// Samples is the number of examples labeled with the mode.
func (s Stats) Samples() int {
	return s.TruePositives + s.FalseNegatives
}

func (s Stats) falsePositiveRate() float64 {
	if n := s.FalsePositives + s.TrueNegatives; n > 0 {
		return float64(s.FalsePositives) / float64(n)
	}
	return 0
}

func (s Stats) falseNegativeRate() float64 {
	if n := s.FalseNegatives + s.TruePositives; n > 0 {
		return float64(s.FalseNegatives) / float64(n)
	}
	return 0
}

// Report summarizes one adaptive pass.
type Report struct {
	Accuracy float64                          `json:"accuracy"`
	Modes    map[mode.TransportMode]Stats     `json:"modes"`
	Weights  map[mode.TransportMode][]float64 `json:"importance,omitempty"`
}

func count(m mode.TransportMode, labeled []classifier.Labeled, predicted []mode.TransportMode) Stats {
	var s Stats
	for i, l := range labeled {
		actual, guess := l.Mode == m, predicted[i] == m
		switch {
		case actual && guess:
			s.TruePositives++
		case !actual && guess:
			s.FalsePositives++
		case actual && !guess:
			s.FalseNegatives++
		default:
			s.TrueNegatives++
		}
	}
	// A mode that was never predicted has shown no permissiveness.
	s.Precision = 1
	if n := s.TruePositives + s.FalsePositives; n > 0 {
		s.Precision = float64(s.TruePositives) / float64(n)
	}
	if n := s.Samples(); n > 0 {
		s.Recall = float64(s.TruePositives) / float64(n)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Importance returns a per-feature separability score between the correct and
// incorrect groups, normalized so the mean importance is 1.
// With either group empty every feature is equally important.
func Importance(correct, incorrect []features.Metrics) [features.NumFeatures]float64 {
	var out [features.NumFeatures]float64
	for i := range out {
		out[i] = 1
	}
	if len(correct) == 0 || len(incorrect) == 0 {
		return out
	}
	var divergence [features.NumFeatures]float64
	total := 0.0
	for f := range divergence {
		c, w := column(correct, f), column(incorrect, f)
		mc, _ := stats.Mean(c)
		mw, _ := stats.Mean(w)
		vc, _ := stats.PopulationVariance(c)
		vw, _ := stats.PopulationVariance(w)
		n := float64(len(c) + len(w))
		pooled := math.Sqrt((float64(len(c))*vc + float64(len(w))*vw) / n)
		divergence[f] = math.Abs(mc-mw) / (pooled + epsilon)
		total += divergence[f]
	}
	mean := total / float64(features.NumFeatures)
	if mean <= 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return out
	}
	for f := range out {
		out[f] = divergence[f] / mean
	}
	return out
}

func column(ms []features.Metrics, f int) stats.Float64Data {
	out := make(stats.Float64Data, len(ms))
	for i, m := range ms {
		out[i] = m[f]
	}
	return out
}

// Learn runs one adaptive pass of models over the labeled set.
// It returns updated copies; models is not modified.
// Modes without labeled examples, or without a model, are left as they are.
func Learn(models calibration.Models, labeled []classifier.Labeled, strategy classifier.Strategy, learningRate float64) (calibration.Models, Report) {
	out := models.Clone()
	ev := classifier.Evaluate(models, labeled, strategy)
	report := Report{
		Accuracy: ev.Accuracy,
		Modes:    make(map[mode.TransportMode]Stats),
		Weights:  make(map[mode.TransportMode][]float64),
	}
	if len(labeled) == 0 {
		return out, report
	}

	for _, m := range mode.All {
		s := count(m, labeled, ev.Predictions)
		model := out[m]
		if s.Samples() == 0 || model == nil {
			if s.Samples() > 0 || s.FalsePositives > 0 {
				report.Modes[m] = s
			}
			continue
		}

		var correct, incorrect []features.Metrics
		for i, l := range labeled {
			if l.Mode != m {
				continue
			}
			if ev.Predictions[i] == m {
				correct = append(correct, l.Metrics)
			} else {
				incorrect = append(incorrect, l.Metrics)
			}
		}
		importance := Importance(correct, incorrect)
		for f, p := range model.Params() {
			p.Weight = common.Clamp(p.Weight+learningRate*(importance[f]-1), calibration.WeightMin, calibration.WeightMax)
		}

		model.ModeBias = common.Clamp(
			model.ModeBias-(s.falsePositiveRate()-s.falseNegativeRate())*learningRate*0.5,
			calibration.BiasMin, calibration.BiasMax)

		threshold := model.ConfidenceThreshold
		if s.Precision < 0.5 {
			threshold += ThresholdStep
		}
		if s.Recall < 0.5 {
			threshold -= ThresholdStep
		}
		model.ConfidenceThreshold = common.Clamp(threshold, calibration.ThresholdMin, calibration.ThresholdMax)

		s.Adjusted = true
		report.Modes[m] = s
		report.Weights[m] = importance[:]
	}
	return out, report
}
