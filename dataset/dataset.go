/*
Package dataset supplies labeled trips for training and evaluation.

Sources only read; Clean does the filtering every consumer wants:
fixes sorted and de-duplicated by time, invalid and unlabeled trips dropped,
and repeated trips passed once.
*/
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rotblauer/catmode/catdb/cache"
	"github.com/rotblauer/catmode/types/trip"
)

// Source yields trips. Implementations must be safe to call more than once.
type Source interface {
	Trips(ctx context.Context) ([]*trip.Trip, error)
}

// Slice is an in-memory source.
type Slice []*trip.Trip

func (s Slice) Trips(ctx context.Context) ([]*trip.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*trip.Trip, len(s))
	copy(out, s)
	return out, nil
}

// Multi concatenates sources in order.
type Multi []Source

func (m Multi) Trips(ctx context.Context) ([]*trip.Trip, error) {
	var out []*trip.Trip
	for i, src := range m {
		trips, err := src.Trips(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		out = append(out, trips...)
	}
	return out, nil
}

// Clean returns sanitized copies of the trips usable for training.
// Inputs are not modified; sources may hand out shared trips.
func Clean(trips []*trip.Trip, logger *slog.Logger) []*trip.Trip {
	if logger == nil {
		logger = slog.Default()
	}
	pass := cache.NewDedupePassLRUFunc(len(trips) + 1)
	out := make([]*trip.Trip, 0, len(trips))
	var unlabeled, short, invalid, dupes int
	for _, t := range trips {
		if t == nil || !t.IsLabeled() {
			unlabeled++
			continue
		}
		c := *t
		c.Fixes = slices.Clone(t.Fixes)
		t = &c
		t.Sanitize()
		if len(t.Fixes) < 2 {
			short++
			continue
		}
		if err := t.Validate(); err != nil {
			invalid++
			logger.Debug("Dropping invalid trip", "id", t.ID, "error", err)
			continue
		}
		if !pass(t) {
			dupes++
			continue
		}
		out = append(out, t)
	}
	logger.Info("Cleaned trips", "in", len(trips), "out", len(out),
		"unlabeled", unlabeled, "short", short, "invalid", invalid, "dupes", dupes)
	return out
}

// Load reads and cleans a source.
func Load(ctx context.Context, src Source, logger *slog.Logger) ([]*trip.Trip, error) {
	trips, err := src.Trips(ctx)
	if err != nil {
		return nil, err
	}
	return Clean(trips, logger), nil
}
