package trainer

import (
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catmode/adaptive"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/stream"
	"github.com/rotblauer/catmode/types/mode"
)

// run is the private state of one training run.
// Only the trainer's loop goroutine touches it.
type run struct {
	id      string
	cfg     Config
	ds      *Dataset
	rng     *rand.Rand
	logger  *slog.Logger
	started time.Time

	models  calibration.Models
	pending map[mode.TransportMode][]int
	accum   map[mode.TransportMode][]*calibration.Model
	counts  map[mode.TransportMode]int
	history *common.RingBuffer[float64]
	eval    classifier.Evaluation

	iteration   int
	epoch       int
	errors      int
	adaptations int

	meter  *stream.TickMeter
	merges metrics.Counter
	adapts metrics.Counter
}

type stepResult struct {
	evaluated bool
	converged bool
}

func newRun(id string, cfg Config, ds *Dataset, logger *slog.Logger) *run {
	models := cfg.InitialModels.Clone()
	if models == nil {
		models = make(calibration.Models)
	}
	r := &run{
		id:      id,
		cfg:     cfg,
		ds:      ds,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		logger:  logger.With("run", id[:8]),
		started: time.Now(),
		models:  models,
		pending: make(map[mode.TransportMode][]int),
		accum:   make(map[mode.TransportMode][]*calibration.Model),
		counts:  make(map[mode.TransportMode]int),
		history: common.NewRingBuffer[float64](cfg.HistoryLimit),
	}
	r.meter = stream.NewTickMeter("Training", cfg.ProgressInterval, r.logger)
	r.merges = metrics.NewRegisteredCounter("merges", r.meter.Registry())
	r.adapts = metrics.NewRegisteredCounter("adapts", r.meter.Registry())
	return r
}

func (r *run) close() {
	r.meter.Stop()
}

// pendingModes returns the modes left in the working buffer, in enum order.
func (r *run) pendingModes() []mode.TransportMode {
	modes := make([]mode.TransportMode, 0, len(r.pending))
	for m, idx := range r.pending {
		if len(idx) > 0 {
			modes = append(modes, m)
		}
	}
	return mode.Sorted(modes)
}

// refill starts an epoch with every example unused.
func (r *run) refill() {
	for m, idx := range r.ds.ByMode {
		r.pending[m] = slices.Clone(idx)
	}
	r.epoch++
}

// draw removes and returns a random unused example of mode m.
func (r *run) draw(m mode.TransportMode) (int, error) {
	idx := r.pending[m]
	if len(idx) == 0 {
		return 0, fmt.Errorf("no unused %v examples", m)
	}
	i := r.rng.Intn(len(idx))
	out := idx[i]
	idx[i] = idx[len(idx)-1]
	r.pending[m] = idx[:len(idx)-1]
	return out, nil
}

func (r *run) safeStep() (res stepResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("iteration %d panicked: %v", r.iteration, p)
		}
	}()
	return r.step()
}

func (r *run) step() (stepResult, error) {
	var res stepResult
	modes := r.pendingModes()
	if len(modes) == 0 {
		r.refill()
		modes = r.pendingModes()
		if len(modes) == 0 {
			return res, ErrEmptyDataset
		}
	}
	m := modes[r.iteration%len(modes)]
	r.iteration++
	r.meter.Mark(1)

	idx, err := r.draw(m)
	if err != nil {
		return res, err
	}
	r.accum[m] = append(r.accum[m], r.ds.Examples[idx].Batch)
	r.counts[m]++
	if len(r.accum[m]) >= r.cfg.BufferSize {
		r.commit(m)
	}

	if r.iteration%r.cfg.EvalEvery == 0 {
		r.evaluate()
		res.evaluated = true
		if r.cfg.TargetAccuracy > 0 && r.eval.Accuracy >= r.cfg.TargetAccuracy {
			res.converged = true
			return res, nil
		}
	}
	if r.iteration%(r.cfg.BufferSize*r.cfg.EvalEvery) == 0 {
		r.adapt()
	}
	return res, nil
}

// commit merges mode m's buffered batches into its working model.
func (r *run) commit(m mode.TransportMode) {
	merged := calibration.MergeAll(r.accum[m], r.cfg.WeightCap)
	r.models[m] = calibration.Merge(r.models[m], merged, r.cfg.WeightCap)
	r.accum[m] = nil
	r.merges.Inc(1)
}

func (r *run) evaluate() {
	r.eval = classifier.Evaluate(r.models, r.ds.Labeled, r.cfg.Strategy)
	r.history.Add(r.eval.Accuracy)
	r.meter.Annotate("epoch", r.epoch, "accuracy", common.Percent(r.eval.Accuracy, 2),
		"merges", r.merges.Snapshot().Count())
	r.logger.Debug("Evaluated", "iteration", r.iteration, "accuracy", r.eval.Accuracy)
}

func (r *run) adapt() {
	models, report := adaptive.Learn(r.models, r.ds.Labeled, r.cfg.Strategy, r.cfg.LearningRate)
	r.models = models
	r.adapts.Inc(1)
	r.adaptations++
	r.logger.Debug("Adapted", "iteration", r.iteration, "accuracy", report.Accuracy)
}

func (r *run) snapshot(status Status) State {
	return State{
		RunID:           r.id,
		Running:         status == Running,
		Status:          status,
		Strategy:        r.cfg.Strategy,
		Iteration:       r.iteration,
		Epoch:           r.epoch,
		Accuracy:        r.eval.Accuracy,
		TotalSamples:    r.eval.Total,
		CorrectSamples:  r.eval.Correct,
		AccuracyHistory: r.history.Get(),
		SampleCounts:    maps.Clone(r.counts),
		Models:          r.models.Clone(),
		Elapsed:         time.Since(r.started),
		Errors:          r.errors,
		Adaptations:     r.adaptations,
	}
}
