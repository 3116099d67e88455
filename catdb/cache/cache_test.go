package cache

import (
	"testing"
	"time"

	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
)

func testTrip(id string, m mode.TransportMode, dt time.Duration) *trip.Trip {
	t0 := time.Date(2024, 11, 18, 17, 54, 27, 0, time.UTC)
	return &trip.Trip{
		ID:   id,
		Mode: m,
		Fixes: []trip.Fix{
			{Time: t0, Lat: 46.9292804, Lon: -114.0877518},
			{Time: t0.Add(dt), Lat: 46.9302804, Lon: -114.0877518},
		},
	}
}

func TestDedupe(t *testing.T) {
	pass := NewDedupePassLRUFunc(10)
	if !pass(testTrip("a", mode.Car, time.Minute)) {
		t.Fatal("first sighting should pass")
	}
	if pass(testTrip("b", mode.Car, time.Minute)) {
		t.Error("same fixes and label under another ID is a duplicate")
	}
	if !pass(testTrip("a", mode.Car, 2*time.Minute)) {
		t.Error("different times should pass")
	}
	if !pass(testTrip("a", mode.Bicycle, time.Minute)) {
		t.Error("different label should pass")
	}
}

func TestFeatureCache(t *testing.T) {
	fc := NewFeatureCache(2)
	a := testTrip("a", mode.Car, time.Minute)
	m1, ok := fc.Metrics(a)
	if !ok {
		t.Fatal("expected metrics")
	}
	m2, _ := fc.Metrics(a)
	if m1 != m2 || fc.Len() != 1 {
		t.Errorf("expected a cache hit, len %d", fc.Len())
	}
	short := &trip.Trip{Fixes: a.Fixes[:1]}
	if _, ok := fc.Metrics(short); ok {
		t.Error("one fix should not aggregate")
	}
	if fc.Len() != 1 {
		t.Errorf("short trips should not be cached, len %d", fc.Len())
	}
	fc.Purge()
	if fc.Len() != 0 {
		t.Error("purge")
	}
}
