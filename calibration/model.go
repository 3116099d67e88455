/*
Package calibration holds the per-mode parameter sets that trips are scored against,
how a labeled trip becomes one, and how two of them are merged.
*/
package calibration

import (
	"math"

	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
)

// Bounds every model is clipped to.
const (
	WeightMin    = 0.1
	WeightMax    = 2.0
	BiasMin      = -0.5
	BiasMax      = 0.5
	ThresholdMin = 0.1
	ThresholdMax = 0.9
)

// Defaults for models created from a single batch.
const (
	DefaultThreshold     = 0.3
	DefaultStrategyBlend = 0.5
	RangeSpread          = 1.3
)

// FeatureParams is the calibration of a single feature.
// Ideal is optional; a nil Ideal falls back to range scoring.
type FeatureParams struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Ideal  *float64 `json:"ideal,omitempty"`
	Weight float64  `json:"weight"`
}

func (p FeatureParams) HasIdeal() bool {
	return p.Ideal != nil
}

func (p FeatureParams) clone() FeatureParams {
	if p.Ideal != nil {
		v := *p.Ideal
		p.Ideal = &v
	}
	return p
}

// Model is the calibration of one transport mode.
//
// Confidence is the accumulated confidence of every batch merged into the model,
// and weights it against other models in a merge.
// Scale multiplies the model's scores and is otherwise left alone by training.
type Model struct {
	AvgSpeed       FeatureParams `json:"avgSpeed"`
	TopSpeed       FeatureParams `json:"topSpeed"`
	AvgAccel       FeatureParams `json:"avgAccel"`
	StopDuration   FeatureParams `json:"stopDuration"`
	Distance       FeatureParams `json:"distance"`
	SpeedVariance  FeatureParams `json:"speedVariance"`
	AccelVariance  FeatureParams `json:"accelVariance"`
	PathComplexity FeatureParams `json:"pathComplexity"`
	Coast500       FeatureParams `json:"coast500"`
	Coast1000      FeatureParams `json:"coast1000"`
	Coast2000      FeatureParams `json:"coast2000"`
	Coast4000      FeatureParams `json:"coast4000"`

	ModeBias            float64 `json:"modeBias"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	StrategyBlend       float64 `json:"strategyBlend"`
	Confidence          float64 `json:"confidence"`
	Scale               float64 `json:"scale"`
}

// Params returns pointers to the feature calibrations, indexed by features.Feature.
func (m *Model) Params() [features.NumFeatures]*FeatureParams {
	return [features.NumFeatures]*FeatureParams{
		features.AvgSpeed:       &m.AvgSpeed,
		features.TopSpeed:       &m.TopSpeed,
		features.AvgAccel:       &m.AvgAccel,
		features.StopDuration:   &m.StopDuration,
		features.Distance:       &m.Distance,
		features.SpeedVariance:  &m.SpeedVariance,
		features.AccelVariance:  &m.AccelVariance,
		features.PathComplexity: &m.PathComplexity,
		features.Coast500:       &m.Coast500,
		features.Coast1000:      &m.Coast1000,
		features.Coast2000:      &m.Coast2000,
		features.Coast4000:      &m.Coast4000,
	}
}

// Param returns the calibration of a single feature.
func (m *Model) Param(f features.Feature) *FeatureParams {
	return m.Params()[f]
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	src := m.Params()
	for i, p := range out.Params() {
		*p = src[i].clone()
	}
	return &out
}

// Clip forces every field into its bounds.
// An inverted range collapses onto its min.
func (m *Model) Clip() {
	for _, p := range m.Params() {
		if p.Max < p.Min {
			p.Max = p.Min
		}
		p.Weight = common.Clamp(p.Weight, WeightMin, WeightMax)
	}
	m.ModeBias = common.Clamp(m.ModeBias, BiasMin, BiasMax)
	m.ConfidenceThreshold = common.Clamp(m.ConfidenceThreshold, ThresholdMin, ThresholdMax)
	m.StrategyBlend = common.Clamp(m.StrategyBlend, 0, 1)
	m.Scale = common.Clamp(m.Scale, 0, 1)
	if math.IsNaN(m.Confidence) || m.Confidence < 0 {
		m.Confidence = 0
	}
}

// FromMetrics seeds a model from one trip's aggregate features.
// Each range spans [v/1.3, v*1.3] around the observed value, which is also the ideal.
func FromMetrics(metrics features.Metrics) *Model {
	m := &Model{
		ConfidenceThreshold: DefaultThreshold,
		StrategyBlend:       DefaultStrategyBlend,
		Confidence:          1,
		Scale:               1,
	}
	for i, p := range m.Params() {
		v := metrics[i]
		p.Min, p.Max = v/RangeSpread, v*RangeSpread
		if p.Max < p.Min {
			p.Min, p.Max = p.Max, p.Min
		}
		p.Ideal = &v
		p.Weight = 1
	}
	return m
}

// BatchMetrics aggregates one labeled trip's samples into a model.
// It returns nil when there is nothing to aggregate.
func BatchMetrics(samples []features.Sample) *Model {
	metrics, ok := features.Aggregate(samples)
	if !ok {
		return nil
	}
	return FromMetrics(metrics)
}

// Models is a model set keyed by mode.
type Models map[mode.TransportMode]*Model

// Clone returns a deep copy.
func (ms Models) Clone() Models {
	if ms == nil {
		return nil
	}
	out := make(Models, len(ms))
	for k, v := range ms {
		out[k] = v.Clone()
	}
	return out
}

// Modes returns the known modes with a model, in enum order.
func (ms Models) Modes() []mode.TransportMode {
	modes := make([]mode.TransportMode, 0, len(ms))
	for k, v := range ms {
		if v != nil {
			modes = append(modes, k)
		}
	}
	return mode.Sorted(modes)
}
