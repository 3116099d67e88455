/*
Package features turns a trip's fixes into kinematic samples
and aggregates those samples into the twelve scalar trip features
that calibration models are built from and scored against.

Units: speed km/h, acceleration km/h per hour, distance km, durations seconds.
*/
package features

import (
	"time"

	"github.com/golang/geo/s2"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/types/trip"
)

// Sample describes the interval between two consecutive fixes.
type Sample struct {
	Speed    float64  `json:"speed"`
	Accel    float64  `json:"accel"`
	Distance float64  `json:"distance"`
	Start    trip.Fix `json:"start"`
	End      trip.Fix `json:"end"`
}

// Hours is the elapsed time of the interval.
func (s Sample) Hours() float64 {
	return s.End.Time.Sub(s.Start.Time).Hours()
}

// Seconds is the elapsed time of the interval.
func (s Sample) Seconds() float64 {
	return s.End.Time.Sub(s.Start.Time).Seconds()
}

func (s Sample) midpoint() time.Time {
	return s.Start.Time.Add(s.End.Time.Sub(s.Start.Time) / 2)
}

// GreatCircleKm returns the great-circle distance between two fixes.
func GreatCircleKm(a, b trip.Fix) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * common.EarthRadiusKm
}

// Extract derives one sample per consecutive fix pair.
// Fewer than two fixes yields no samples.
//
// Acceleration for sample i is the speed difference between its neighbors
// i-1 and i+1 over the time between their interval midpoints.
// At either end of the sequence the missing neighbor is sample i itself,
// making the difference one-sided; a lone sample has zero acceleration.
func Extract(fixes []trip.Fix) []Sample {
	if len(fixes) < 2 {
		return nil
	}
	samples := make([]Sample, len(fixes)-1)
	for i := 0; i < len(fixes)-1; i++ {
		a, b := fixes[i], fixes[i+1]
		s := Sample{
			Distance: GreatCircleKm(a, b),
			Start:    a,
			End:      b,
		}
		if h := s.Hours(); h > 0 {
			s.Speed = s.Distance / h
		}
		samples[i] = s
	}
	for i := range samples {
		prev, next := i, i
		if i > 0 {
			prev = i - 1
		}
		if i < len(samples)-1 {
			next = i + 1
		}
		if prev == next {
			continue
		}
		dt := samples[next].midpoint().Sub(samples[prev].midpoint()).Hours()
		if dt <= 0 {
			continue
		}
		samples[i].Accel = (samples[next].Speed - samples[prev].Speed) / dt
	}
	return samples
}

// ExtractTrip is Extract over a trip's fixes.
func ExtractTrip(t *trip.Trip) []Sample {
	if t == nil {
		return nil
	}
	return Extract(t.Fixes)
}
