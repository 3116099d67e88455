package calibration

import (
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
)

const day = 24 * 60 * 60

// profile is a coarse hand-tuned calibration: [min, max] per feature,
// and an ideal average speed.
type profile struct {
	ranges   [features.NumFeatures][2]float64
	idealAvg float64
}

// Coasting spans are kept open; only training learns them.
var anyCoast = [2]float64{0, day}

var profiles = map[mode.TransportMode]profile{
	mode.Still: {
		idealAvg: 0,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {0, common.SpeedOfStillMax},
			features.TopSpeed:       {0, 3},
			features.AvgAccel:       {0, 200},
			features.StopDuration:   {60, day},
			features.Distance:       {0, 0.2},
			features.SpeedVariance:  {0, 1},
			features.AccelVariance:  {0, 40_000},
			features.PathComplexity: {10, 5000},
		},
	},
	mode.Walking: {
		idealAvg: common.SpeedOfWalkingMean,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {common.SpeedOfWalkingMin, common.SpeedOfWalkingMax},
			features.TopSpeed:       {2, 12},
			features.AvgAccel:       {0, 1500},
			features.StopDuration:   {0, 1800},
			features.Distance:       {0.05, 20},
			features.SpeedVariance:  {0, 9},
			features.AccelVariance:  {0, 2e6},
			features.PathComplexity: {2, 400},
		},
	},
	mode.Bicycle: {
		idealAvg: common.SpeedOfCyclingMean,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {common.SpeedOfCyclingMin, common.SpeedOfCyclingMax},
			features.TopSpeed:       {15, 60},
			features.AvgAccel:       {0, 4000},
			features.StopDuration:   {0, 900},
			features.Distance:       {0.5, 150},
			features.SpeedVariance:  {0, 60},
			features.AccelVariance:  {0, 1e7},
			features.PathComplexity: {0.5, 100},
		},
	},
	mode.Motorcycle: {
		idealAvg: common.SpeedOfMotorcycleMean,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {20, common.SpeedOfMotorcycleMax},
			features.TopSpeed:       {40, 200},
			features.AvgAccel:       {0, 15_000},
			features.StopDuration:   {0, 900},
			features.Distance:       {1, 600},
			features.SpeedVariance:  {0, 900},
			features.AccelVariance:  {0, 1e8},
			features.PathComplexity: {0.1, 40},
		},
	},
	mode.Car: {
		idealAvg: common.SpeedOfDrivingCityMean,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {common.SpeedOfDrivingMin, common.SpeedOfDrivingMax},
			features.TopSpeed:       {30, 200},
			features.AvgAccel:       {0, 20_000},
			features.StopDuration:   {0, 1800},
			features.Distance:       {1, 1000},
			features.SpeedVariance:  {0, 1200},
			features.AccelVariance:  {0, 2e8},
			features.PathComplexity: {0.1, 40},
		},
	},
	mode.Train: {
		idealAvg: common.SpeedOfTrainMean,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {common.SpeedOfTrainMin, common.SpeedOfTrainMax},
			features.TopSpeed:       {60, 350},
			features.AvgAccel:       {0, 8000},
			features.StopDuration:   {0, 1800},
			features.Distance:       {5, 2000},
			features.SpeedVariance:  {0, 2500},
			features.AccelVariance:  {0, 5e7},
			features.PathComplexity: {0.01, 10},
		},
	},
	mode.Airplane: {
		idealAvg: common.SpeedOfCommercialFlight * 0.8,
		ranges: [features.NumFeatures][2]float64{
			features.AvgSpeed:       {common.SpeedOfFlyingSlow, common.SpeedOfCommercialFlight * 1.2},
			features.TopSpeed:       {300, 1100},
			features.AvgAccel:       {0, 30_000},
			features.StopDuration:   {0, 600},
			features.Distance:       {100, 16_000},
			features.SpeedVariance:  {0, 40_000},
			features.AccelVariance:  {0, 1e9},
			features.PathComplexity: {0.001, 2},
		},
	},
}

// Defaults returns the built-in model set, used whenever no working models are stored.
func Defaults() Models {
	out := make(Models, len(profiles))
	for m, p := range profiles {
		out[m] = p.model()
	}
	return out
}

// Default returns the built-in model for a mode, or nil.
func Default(m mode.TransportMode) *Model {
	p, ok := profiles[m]
	if !ok {
		return nil
	}
	return p.model()
}

func (pr profile) model() *Model {
	m := &Model{
		ConfidenceThreshold: DefaultThreshold,
		StrategyBlend:       DefaultStrategyBlend,
		Confidence:          1,
		Scale:               1,
	}
	for i, p := range m.Params() {
		r := pr.ranges[i]
		if features.Feature(i) >= features.Coast500 {
			r = anyCoast
		}
		p.Min, p.Max = r[0], r[1]
		p.Weight = 1
	}
	ideal := pr.idealAvg
	m.AvgSpeed.Ideal = &ideal
	return m
}
