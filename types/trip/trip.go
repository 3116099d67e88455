package trip

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catmode/types/mode"
)

var (
	ErrNotLineString = errors.New("trip geometry is not a LineString")
	ErrTimesMismatch = errors.New("trip times do not match coordinates")
	ErrUnordered     = errors.New("trip fixes are not strictly chronological")
)

// Fix is a single GPS sample.
type Fix struct {
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

// Point returns the fix as an orb (lon, lat) point.
func (f Fix) Point() orb.Point {
	return orb.Point{f.Lon, f.Lat}
}

// Trip is one movement segment.
// Mode is the ground-truth label; Unknown for trips being classified.
type Trip struct {
	ID    string             `json:"id,omitempty"`
	Mode  mode.TransportMode `json:"mode"`
	Fixes []Fix              `json:"fixes"`
}

func (t *Trip) IsLabeled() bool {
	return t.Mode.IsKnown()
}

// Validate checks that fixes are strictly chronological and have finite coordinates.
func (t *Trip) Validate() error {
	for i, f := range t.Fixes {
		if math.IsNaN(f.Lat) || math.IsNaN(f.Lon) || math.IsInf(f.Lat, 0) || math.IsInf(f.Lon, 0) {
			return fmt.Errorf("fix %d: invalid coordinate", i)
		}
		if f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
			return fmt.Errorf("fix %d: coordinate out of range", i)
		}
		if i > 0 && !f.Time.After(t.Fixes[i-1].Time) {
			return fmt.Errorf("fix %d: %w", i, ErrUnordered)
		}
	}
	return nil
}

// Sanitize sorts fixes by time and drops any fix sharing a timestamp with its predecessor.
// It mutates the trip in place.
func (t *Trip) Sanitize() {
	slices.SortStableFunc(t.Fixes, func(a, b Fix) int {
		return a.Time.Compare(b.Time)
	})
	t.Fixes = slices.CompactFunc(t.Fixes, func(a, b Fix) bool {
		return a.Time.Equal(b.Time)
	})
}

func (t *Trip) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(t.Fixes))
	for _, f := range t.Fixes {
		ls = append(ls, f.Point())
	}
	return ls
}

// Length returns the geodesic length of the trip in meters.
func (t *Trip) Length() float64 {
	if len(t.Fixes) < 2 {
		return 0
	}
	return geo.Length(t.LineString())
}

func (t *Trip) Duration() time.Duration {
	if len(t.Fixes) < 2 {
		return 0
	}
	return t.Fixes[len(t.Fixes)-1].Time.Sub(t.Fixes[0].Time)
}

// Feature encodes the trip as a GeoJSON LineString feature.
// Times are carried in the UnixTimes property as epoch milliseconds.
func (t *Trip) Feature() *geojson.Feature {
	f := geojson.NewFeature(t.LineString())
	if t.ID != "" {
		f.ID = t.ID
	}
	times := make([]int64, 0, len(t.Fixes))
	for _, fx := range t.Fixes {
		times = append(times, fx.Time.UnixMilli())
	}
	f.Properties["UnixTimes"] = times
	if t.Mode.IsKnown() {
		f.Properties["Mode"] = t.Mode.String()
	}
	return f
}

// FromFeature decodes a trip from a GeoJSON LineString feature.
// A missing or unparseable Mode property yields an unlabeled trip.
func FromFeature(f *geojson.Feature) (*Trip, error) {
	ls, ok := f.Geometry.(orb.LineString)
	if !ok {
		return nil, ErrNotLineString
	}
	var rawTimes []any
	switch v := f.Properties["UnixTimes"].(type) {
	case []any:
		rawTimes = v
	case []int64:
		for _, ms := range v {
			rawTimes = append(rawTimes, float64(ms))
		}
	}
	if len(rawTimes) != len(ls) {
		return nil, ErrTimesMismatch
	}
	t := &Trip{
		Mode:  mode.FromAny(f.Properties["Mode"]),
		Fixes: make([]Fix, 0, len(ls)),
	}
	switch id := f.ID.(type) {
	case string:
		t.ID = id
	case float64:
		t.ID = fmt.Sprintf("%.0f", id)
	}
	if t.ID == "" {
		t.ID = f.Properties.MustString("ID", "")
	}
	for i, pt := range ls {
		ms, ok := rawTimes[i].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: time %d is not a number", ErrTimesMismatch, i)
		}
		t.Fixes = append(t.Fixes, Fix{
			Time: time.UnixMilli(int64(ms)).UTC(),
			Lat:  pt.Lat(),
			Lon:  pt.Lon(),
		})
	}
	return t, nil
}

// MarshalJSON encodes the trip as a GeoJSON feature.
func (t Trip) MarshalJSON() ([]byte, error) {
	return t.Feature().MarshalJSON()
}

// UnmarshalJSON decodes the trip from a GeoJSON feature.
func (t *Trip) UnmarshalJSON(data []byte) error {
	f, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return err
	}
	got, err := FromFeature(f)
	if err != nil {
		return err
	}
	*t = *got
	return nil
}
