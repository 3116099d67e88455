// Package cache holds the in-memory caches in front of trip decoding and feature extraction.
package cache

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	lrux "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/types/trip"
)

// tripKey is what makes two trips the same trip.
// time.Time hides its fields from hashstructure, so times are hashed as epoch nanos.
type tripKey struct {
	Mode  string
	Times []int64
	Lats  []float64
	Lons  []float64
}

// TripHash returns a structural hash of the trip's label and fixes. IDs are ignored.
func TripHash(t *trip.Trip) (uint64, error) {
	k := tripKey{
		Mode:  t.Mode.String(),
		Times: make([]int64, len(t.Fixes)),
		Lats:  make([]float64, len(t.Fixes)),
		Lons:  make([]float64, len(t.Fixes)),
	}
	for i, f := range t.Fixes {
		k.Times[i] = f.Time.UnixNano()
		k.Lats[i] = f.Lat
		k.Lons[i] = f.Lon
	}
	return hashstructure.Hash(k, hashstructure.FormatV2, nil)
}

// NewDedupePassLRUFunc returns a predicate that passes each distinct trip once,
// remembering up to size trips. It is safe for concurrent use.
func NewDedupePassLRUFunc(size int) func(*trip.Trip) bool {
	if size <= 0 {
		size = params.CacheDedupeSize
	}
	var mu sync.Mutex
	dedupeCache := lru.New(size)
	return func(t *trip.Trip) bool {
		hash, err := TripHash(t)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		mu.Lock()
		defer mu.Unlock()
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}

// FeatureCache memoizes trip feature aggregation by trip hash.
type FeatureCache struct {
	c *lrux.Cache[uint64, features.Metrics]
}

func NewFeatureCache(size int) *FeatureCache {
	if size <= 0 {
		size = params.CacheFeaturesSize
	}
	c, err := lrux.New[uint64, features.Metrics](size)
	if err != nil {
		panic(err)
	}
	return &FeatureCache{c: c}
}

// Metrics returns the trip's aggregate features, computing them on a miss.
// It returns false for trips too short to aggregate.
func (fc *FeatureCache) Metrics(t *trip.Trip) (features.Metrics, bool) {
	hash, err := TripHash(t)
	if err == nil {
		if m, ok := fc.c.Get(hash); ok {
			return m, true
		}
	}
	m, ok := features.Aggregate(features.ExtractTrip(t))
	if ok && err == nil {
		fc.c.Add(hash, m)
	}
	return m, ok
}

func (fc *FeatureCache) Len() int {
	return fc.c.Len()
}

func (fc *FeatureCache) Purge() {
	fc.c.Purge()
}
