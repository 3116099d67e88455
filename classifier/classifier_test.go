package classifier

import (
	"math"
	"testing"
	"time"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
	"github.com/spf13/pflag"
)

// wide returns a model that accepts anything.
func wide() *calibration.Model {
	m := &calibration.Model{
		ConfidenceThreshold: 0.3,
		StrategyBlend:       0.5,
		Confidence:          1,
		Scale:               1,
	}
	for _, p := range m.Params() {
		p.Min, p.Max, p.Weight = 0, 1e9, 1
	}
	return m
}

func withSpeed(m *calibration.Model, lo, hi float64) *calibration.Model {
	m.AvgSpeed.Min, m.AvgSpeed.Max = lo, hi
	m.TopSpeed.Min, m.TopSpeed.Max = lo, hi
	return m
}

// thirtyKmh is two fixes a minute and 500 m apart.
func thirtyKmh() *trip.Trip {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &trip.Trip{Fixes: []trip.Fix{
		{Time: t0, Lat: 45, Lon: -93},
		{Time: t0.Add(time.Minute), Lat: 45 + 0.5/common.EarthRadiusKm*180/math.Pi, Lon: -93},
	}}
}

func TestClassify_WalkingVsCar(t *testing.T) {
	models := calibration.Models{
		mode.Walking: withSpeed(wide(), 0, 7),
		mode.Car:     withSpeed(wide(), 20, 120),
	}
	for _, s := range []Strategy{RangeBased, IdealBased, Combined} {
		if got := Classify(thirtyKmh(), models, s); got != mode.Car {
			t.Errorf("%v: have %v want Car", s, got)
		}
	}
}

func TestDetect_Empty(t *testing.T) {
	models := calibration.Defaults()
	for _, s := range []Strategy{RangeBased, IdealBased, Combined} {
		if got := Detect(nil, models, s); got != mode.Unknown {
			t.Errorf("%v: have %v want Unknown", s, got)
		}
	}
	samples := features.ExtractTrip(thirtyKmh())
	if got := Detect(samples, nil, RangeBased); got != mode.Unknown {
		t.Errorf("no models: have %v want Unknown", got)
	}
}

func TestDetect_ConfidenceGate(t *testing.T) {
	car := wide()
	car.ModeBias = -0.2
	car.ConfidenceThreshold = 0.9
	walk := wide()
	walk.ModeBias = -0.5
	models := calibration.Models{mode.Car: car, mode.Walking: walk}

	samples := features.ExtractTrip(thirtyKmh())
	metrics, _ := features.Aggregate(samples)
	ranked := Rank(metrics, models, RangeBased)
	if ranked[0].Mode != mode.Car || ranked[0].Eligible {
		t.Fatalf("car should rank first but be ineligible: %+v", ranked)
	}
	if got := Detect(samples, models, RangeBased); got != mode.Walking {
		t.Errorf("have %v want Walking", got)
	}

	walk.ConfidenceThreshold = 0.6
	if got := Detect(samples, models, RangeBased); got != mode.Unknown {
		t.Errorf("have %v want Unknown", got)
	}
}

func TestDetect_Tie(t *testing.T) {
	models := calibration.Models{mode.Train: wide(), mode.Car: wide(), mode.Bicycle: wide()}
	samples := features.ExtractTrip(thirtyKmh())
	for i := 0; i < 10; i++ {
		if got := Detect(samples, models, RangeBased); got != mode.Bicycle {
			t.Fatalf("have %v want Bicycle", got)
		}
	}
}

func TestScore(t *testing.T) {
	var metrics features.Metrics
	metrics[features.AvgSpeed] = 30

	if got := Score(metrics, mode.Car, calibration.Models{}, RangeBased); got != 0 {
		t.Errorf("missing model: have %f want 0", got)
	}

	m := wide()
	m.Scale = 0.5
	if got := ScoreModel(metrics, m, RangeBased); got != 0.5 {
		t.Errorf("scaled: have %f want 0.5", got)
	}

	m = wide()
	for _, p := range m.Params() {
		p.Weight = 0.1
	}
	m.AvgSpeed.Min = 60
	m.AvgSpeed.Weight = 1.1
	// avg speed scores 30/60, the other eleven 1.
	want := (1.1*0.5 + 11*0.1) / (1.1 + 11*0.1)
	if got := ScoreModel(metrics, m, RangeBased); math.Abs(got-want) > 1e-12 {
		t.Errorf("weighted: have %f want %f", got, want)
	}
}

func TestRangeScore(t *testing.T) {
	p := calibration.FeatureParams{Min: 10, Max: 20}
	cases := []struct {
		v, want float64
	}{
		{15, 1},
		{10, 1},
		{20, 1},
		{5, 0.5},
		{40, 0.5},
		{0, 0},
		{-3, 0},
	}
	for _, c := range cases {
		if got := RangeScore(c.v, p); got != c.want {
			t.Errorf("%v: have %v want %v", c.v, got, c.want)
		}
	}
	if got := RangeScore(1, calibration.FeatureParams{Min: 0, Max: 0}); got != 0 {
		t.Errorf("zero range: have %v want 0", got)
	}
}

func TestIdealScore(t *testing.T) {
	ideal := 15.0
	p := calibration.FeatureParams{Min: 11, Max: 19, Ideal: &ideal}
	if got := IdealScore(15, p); got != 1 {
		t.Errorf("at ideal: have %v", got)
	}
	if got := IdealScore(17, p); math.Abs(got-math.Exp(-0.5)) > 1e-12 {
		t.Errorf("one sigma: have %v", got)
	}
	p.Min, p.Max = 15, 15
	if got := IdealScore(15, p); got != 1 {
		t.Errorf("zero sigma at ideal: have %v", got)
	}
	if got := IdealScore(15.1, p); got != 0 {
		t.Errorf("zero sigma off ideal: have %v", got)
	}
	p.Ideal = nil
	p.Min, p.Max = 10, 20
	if got := IdealScore(5, p); got != 0.5 {
		t.Errorf("no ideal falls back to range: have %v", got)
	}
}

func TestEvaluate(t *testing.T) {
	car := withSpeed(wide(), 20, 120)
	car.ConfidenceThreshold = 0.9
	models := calibration.Models{mode.Car: car}
	var fast, slow features.Metrics
	fast[features.AvgSpeed], fast[features.TopSpeed] = 50, 80
	labeled := []Labeled{
		{Mode: mode.Car, Metrics: fast},
		{Mode: mode.Walking, Metrics: slow},
		{Mode: mode.Car, Metrics: slow},
	}
	ev := Evaluate(models, labeled, RangeBased)
	if ev.Total != 3 || ev.Correct != 1 {
		t.Errorf("have %d/%d want 1/3", ev.Correct, ev.Total)
	}
	if ev.Predictions[0] != mode.Car {
		t.Errorf("have %v want Car", ev.Predictions[0])
	}
	if Evaluate(models, nil, RangeBased).Accuracy != 0 {
		t.Error("empty set should have zero accuracy")
	}
}

func TestStrategy_Flag(t *testing.T) {
	var s Strategy
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&s, "strategy", "scoring strategy")
	if err := fs.Parse([]string{"--strategy", "Combined"}); err != nil {
		t.Fatal(err)
	}
	if s != Combined {
		t.Errorf("have %v want combined", s)
	}
	if err := s.Set("magic"); err == nil {
		t.Error("expected error")
	}
	for _, want := range []Strategy{RangeBased, IdealBased, Combined} {
		got, err := StrategyFromString(want.String())
		if err != nil || got != want {
			t.Errorf("have %v, %v want %v", got, err, want)
		}
	}
}
