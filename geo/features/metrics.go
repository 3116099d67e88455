package features

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/rotblauer/catmode/common"
)

// Feature indexes the twelve aggregate trip features.
type Feature int

const (
	AvgSpeed Feature = iota
	TopSpeed
	AvgAccel
	StopDuration
	Distance
	SpeedVariance
	AccelVariance
	PathComplexity
	Coast500
	Coast1000
	Coast2000
	Coast4000

	NumFeatures int = iota
)

// CoastThresholds are the |acceleration| ceilings of the four coasting features.
var CoastThresholds = [4]float64{500, 1000, 2000, 4000}

// MinPathDistanceKm floors the path complexity denominator so stationary trips stay finite.
const MinPathDistanceKm = 0.001

var featureNames = [NumFeatures]string{
	"avgSpeed",
	"topSpeed",
	"avgAccel",
	"stopDuration",
	"distance",
	"speedVariance",
	"accelVariance",
	"pathComplexity",
	"coast500",
	"coast1000",
	"coast2000",
	"coast4000",
}

func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// All returns every feature in index order.
func All() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// Metrics are one trip's aggregate feature values.
type Metrics [NumFeatures]float64

// Map names the values, eg. for JSON output.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64, NumFeatures)
	for i, v := range m {
		out[featureNames[i]] = v
	}
	return out
}

func mustStat(fn func(stats.Float64Data) (float64, error), data []float64) float64 {
	out, err := fn(data)
	if err != nil || math.IsNaN(out) {
		return 0
	}
	return out
}

// Aggregate reduces a trip's samples into its feature metrics.
// It returns false when there are no samples.
func Aggregate(samples []Sample) (Metrics, bool) {
	var m Metrics
	if len(samples) == 0 {
		return m, false
	}

	speeds := make([]float64, 0, len(samples))
	accels := make([]float64, 0, len(samples))
	distance, stopped := 0.0, 0.0
	for _, s := range samples {
		speeds = append(speeds, s.Speed)
		accels = append(accels, math.Abs(s.Accel))
		distance += s.Distance
		if s.Speed < common.SpeedOfStillMax {
			stopped += s.Seconds()
		}
	}

	m[AvgSpeed] = mustStat(stats.Mean, speeds)
	m[TopSpeed] = mustStat(stats.Max, speeds)
	m[AvgAccel] = mustStat(stats.Mean, accels)
	m[StopDuration] = stopped
	m[Distance] = distance
	m[SpeedVariance] = mustStat(stats.PopulationVariance, speeds)
	m[AccelVariance] = mustStat(stats.PopulationVariance, accels)
	m[PathComplexity] = float64(len(samples)+1) / math.Max(distance, MinPathDistanceKm)
	for i, threshold := range CoastThresholds {
		m[Coast500+Feature(i)] = LongestCoast(samples, threshold)
	}
	return m, true
}

// LongestCoast returns the longest contiguous span, in seconds,
// of samples whose |acceleration| is below threshold.
func LongestCoast(samples []Sample, threshold float64) float64 {
	longest, run := 0.0, 0.0
	for _, s := range samples {
		if math.Abs(s.Accel) < threshold {
			run += s.Seconds()
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}
