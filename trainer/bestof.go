package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BestOf trains n independent runs over the same cached dataset, seeded
// cfg.Seed, cfg.Seed+1, ..., and returns every run's final snapshot and the most accurate.
// Ties go to the earlier run. Runs must end on their own: set MaxIterations
// or TargetAccuracy, or cancel ctx.
func BestOf(ctx context.Context, cache *DatasetCache, n int, cfg Config) (best State, all []State, err error) {
	if n < 1 {
		n = 1
	}
	cfg = cfg.normalized()
	if cfg.MaxIterations <= 0 && cfg.TargetAccuracy <= 0 && ctx.Done() == nil {
		return best, nil, errors.New("best-of runs need MaxIterations, TargetAccuracy or a cancellable context")
	}
	// Load once up front so runs share the dataset rather than racing to load it.
	if cfg.CleanCache {
		if _, err := cache.Reload(ctx); err != nil {
			return best, nil, err
		}
	}

	trainers := make([]*Trainer, n)
	for i := range trainers {
		tc := *cfg.TrainerConfig
		tc.Seed += int64(i)
		tc.CleanCache = false
		c := cfg
		c.TrainerConfig = &tc
		trainers[i] = New(cache)
		if err := trainers[i].Start(ctx, c); err != nil {
			for _, started := range trainers[:i] {
				started.Stop()
			}
			return best, nil, fmt.Errorf("start run %d: %w", i, err)
		}
	}

	var wait sync.WaitGroup
	for _, tr := range trainers {
		wait.Add(1)
		go func() {
			defer wait.Done()
			tr.Wait()
		}()
	}
	wait.Wait()

	all = make([]State, n)
	for i, tr := range trainers {
		all[i] = tr.State()
		if i == 0 || all[i].Accuracy > best.Accuracy {
			best = all[i]
		}
	}
	return best, all, nil
}
