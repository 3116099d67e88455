/*
Package trainer runs the online training loop.

Each iteration draws one unused labeled example, round-robin across the modes
left in the epoch's working buffer, and buffers its batch model. Full buffers are
chain-merged into the mode's working model. The working models are evaluated against
the whole dataset every EvalEvery iterations, and retuned by an adaptive pass every
BufferSize*EvalEvery iterations.

Trainers share a DatasetCache but nothing else; any number may run at once.
*/
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/params"
)

var ErrAlreadyRunning = errors.New("trainer is already running")

type Config struct {
	*params.TrainerConfig
	Strategy classifier.Strategy

	// InitialModels seed the working models. Nil starts from nothing.
	InitialModels calibration.Models
}

func DefaultConfig() Config {
	return Config{
		TrainerConfig: params.DefaultTrainerConfig(),
		Strategy:      classifier.Combined,
	}
}

// normalized returns a copy with unusable values replaced by defaults.
func (c Config) normalized() Config {
	def := params.DefaultTrainerConfig()
	if c.TrainerConfig == nil {
		c.TrainerConfig = def
	}
	tc := *c.TrainerConfig
	if tc.BufferSize < 1 {
		tc.BufferSize = 1
	}
	if tc.EvalEvery < 1 {
		tc.EvalEvery = def.EvalEvery
	}
	if tc.HistoryLimit < 1 || tc.HistoryLimit > def.HistoryLimit {
		tc.HistoryLimit = def.HistoryLimit
	}
	if tc.Interval <= 0 {
		tc.Interval = def.Interval
	}
	c.TrainerConfig = &tc
	return c
}

// Trainer owns at most one run at a time.
type Trainer struct {
	cache  *DatasetCache
	logger *slog.Logger
	feed   event.FeedOf[State]

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cache *DatasetCache) *Trainer {
	done := make(chan struct{})
	close(done)
	return &Trainer{
		cache:  cache,
		logger: slog.With("d", "train"),
		done:   done,
	}
}

// Start loads the dataset and launches a run in the background.
// The run ends when ctx is cancelled, Stop is called, the target accuracy is met,
// or MaxIterations pass. A Stop during the load abandons the run, and Start
// returns the cancellation error.
func (t *Trainer) Start(ctx context.Context, cfg Config) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	if t.state.Running {
		t.mu.Unlock()
		cancel()
		return ErrAlreadyRunning
	}
	t.state.Running = true
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	release := func() {
		cancel()
		t.mu.Lock()
		t.state.Running = false
		t.cancel = nil
		t.mu.Unlock()
		close(done)
	}

	cfg = cfg.normalized()
	load := t.cache.Get
	if cfg.CleanCache {
		load = t.cache.Reload
	}
	ds, err := load(runCtx)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil {
		release()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("load dataset: %w", err)
	}
	if ds.Len() == 0 {
		release()
		return ErrEmptyDataset
	}

	r := newRun(uuid.NewString(), cfg, ds, t.logger)
	t.mu.Lock()
	t.state = r.snapshot(Running)
	t.mu.Unlock()

	r.logger.Info("Training started",
		"strategy", cfg.Strategy, "examples", ds.Len(), "counts", ds.Counts(),
		"buffer", cfg.BufferSize, "cap", cfg.WeightCap, "target", cfg.TargetAccuracy)

	go t.loop(runCtx, cancel, r, done)
	return nil
}

// Stop cancels the running run, if any, and waits for it to end.
// Models stay as last committed.
func (t *Trainer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed when the current run ends.
func (t *Trainer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Wait blocks until the current run ends.
func (t *Trainer) Wait() {
	<-t.Done()
}

// State returns a copy of the latest snapshot.
func (t *Trainer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Models returns a copy of the latest published working models.
func (t *Trainer) Models() calibration.Models {
	return t.State().Models
}

// Subscribe relays published snapshots to ch.
// A reader that falls behind misses intermediate snapshots but always gets
// the newest one, so the run's final snapshot is delivered last.
// Snapshots are shared between subscribers and must not be modified.
func (t *Trainer) Subscribe(ch chan<- State) event.Subscription {
	in := make(chan State)
	inner := t.feed.Subscribe(in)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		var pending State
		var has bool
		for {
			var out chan<- State
			if has {
				out = ch
			}
			select {
			case s := <-in:
				pending, has = s, true
			case out <- pending:
				has = false
			case err := <-inner.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

// States returns a channel holding the latest snapshot of the current run.
// Older snapshots a slow reader missed are dropped.
// The channel is closed after the run's final snapshot, or when ctx is done.
// With no run in progress it is closed immediately.
func (t *Trainer) States(ctx context.Context) <-chan State {
	out := make(chan State, 1)
	ch := make(chan State)
	sub := t.feed.Subscribe(ch)
	done := t.Done()
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case s := <-ch:
				latest(out, s)
				if !s.Running {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return out
}

// latest replaces whatever out holds with s. The caller must be out's only sender.
func latest(out chan State, s State) {
	select {
	case out <- s:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- s
}

func (t *Trainer) publish(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.feed.Send(s.Clone())
}

func (t *Trainer) loop(ctx context.Context, cancel context.CancelFunc, r *run, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer r.close()

	finish := func(status Status) {
		s := r.snapshot(status)
		r.logger.Info("Training ended", "status", status, "iterations", r.iteration,
			"epochs", r.epoch, "accuracy", s.Accuracy, "errors", r.errors,
			"elapsed", s.Elapsed.Round(time.Millisecond))
		t.publish(s)
	}

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			finish(Idle)
			return
		}
		res, err := r.safeStep()
		if err != nil {
			r.errors++
			r.logger.Error("Training iteration failed", "iteration", r.iteration, "error", err)
		}
		if res.evaluated {
			t.publish(r.snapshot(Running))
		}
		if res.converged {
			finish(Converged)
			return
		}
		if r.cfg.MaxIterations > 0 && r.iteration >= r.cfg.MaxIterations {
			if !res.evaluated {
				r.evaluate()
			}
			finish(Idle)
			return
		}
		select {
		case <-ctx.Done():
			finish(Idle)
			return
		case <-timer.C:
			timer.Reset(r.cfg.Interval)
		}
	}
}
