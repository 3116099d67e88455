package trainer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/dataset"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
)

var ErrEmptyDataset = errors.New("no labeled trips to train on")

// Example is one labeled trip, reduced once and shared read-only between trainers.
type Example struct {
	ID    string
	Mode  mode.TransportMode
	Batch *calibration.Model
}

// Dataset is an immutable set of labeled examples.
// Nothing may mutate a Dataset after NewDataset returns.
type Dataset struct {
	Examples []Example
	Labeled  []classifier.Labeled
	ByMode   map[mode.TransportMode][]int
	LoadedAt time.Time
}

// NewDataset reduces trips to examples. Unlabeled trips and trips
// too short to aggregate are skipped.
func NewDataset(trips []*trip.Trip) *Dataset {
	ds := &Dataset{
		ByMode:   make(map[mode.TransportMode][]int),
		LoadedAt: time.Now(),
	}
	for _, t := range trips {
		if t == nil || !t.IsLabeled() {
			continue
		}
		metrics, ok := features.Aggregate(features.ExtractTrip(t))
		if !ok {
			continue
		}
		ds.ByMode[t.Mode] = append(ds.ByMode[t.Mode], len(ds.Examples))
		ds.Examples = append(ds.Examples, Example{
			ID:    t.ID,
			Mode:  t.Mode,
			Batch: calibration.FromMetrics(metrics),
		})
		ds.Labeled = append(ds.Labeled, classifier.Labeled{
			ID:      t.ID,
			Mode:    t.Mode,
			Metrics: metrics,
		})
	}
	return ds
}

func (ds *Dataset) Len() int {
	return len(ds.Examples)
}

// Counts returns the number of examples per mode.
func (ds *Dataset) Counts() map[mode.TransportMode]int {
	out := make(map[mode.TransportMode]int, len(ds.ByMode))
	for m, idx := range ds.ByMode {
		out[m] = len(idx)
	}
	return out
}

// Modes returns the modes with examples, in enum order.
func (ds *Dataset) Modes() []mode.TransportMode {
	modes := make([]mode.TransportMode, 0, len(ds.ByMode))
	for m := range ds.ByMode {
		modes = append(modes, m)
	}
	return mode.Sorted(modes)
}

// DatasetCache loads a source's dataset once and shares it.
// Concurrent first loads race; the first stored result wins and the others are discarded.
type DatasetCache struct {
	source dataset.Source
	logger *slog.Logger
	ds     atomic.Pointer[Dataset]
	loads  atomic.Int64
}

func NewDatasetCache(source dataset.Source) *DatasetCache {
	return &DatasetCache{
		source: source,
		logger: slog.With("d", "dataset"),
	}
}

// Get returns the cached dataset, loading it on first use.
func (c *DatasetCache) Get(ctx context.Context) (*Dataset, error) {
	if ds := c.ds.Load(); ds != nil {
		return ds, nil
	}
	trips, err := dataset.Load(ctx, c.source, c.logger)
	if err != nil {
		return nil, err
	}
	ds := NewDataset(trips)
	c.loads.Add(1)
	if !c.ds.CompareAndSwap(nil, ds) {
		if first := c.ds.Load(); first != nil {
			c.logger.Debug("Dataset loaded concurrently, using the first")
			ds = first
		}
	}
	c.logger.Info("Dataset ready", "examples", ds.Len(), "counts", ds.Counts())
	return ds, nil
}

// Reload drops the cached dataset and loads it again.
func (c *DatasetCache) Reload(ctx context.Context) (*Dataset, error) {
	c.Clear()
	return c.Get(ctx)
}

// Clear drops the cached dataset. Trainers holding it keep their reference.
func (c *DatasetCache) Clear() {
	c.ds.Store(nil)
}

// Loaded returns the cached dataset without loading, or nil.
func (c *DatasetCache) Loaded() *Dataset {
	return c.ds.Load()
}

// Loads counts how many times the source has been read.
func (c *DatasetCache) Loads() int64 {
	return c.loads.Load()
}
