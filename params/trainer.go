package params

import "time"

type TrainerConfig struct {
	// WeightCap bounds accumulated model confidence. Zero or less is uncapped.
	WeightCap float64

	// TargetAccuracy ends the run as converged once reached. Zero disables it.
	TargetAccuracy float64

	LearningRate float64

	// BufferSize is how many batch models accumulate per mode before
	// they are merged into the working model.
	BufferSize int

	// CleanCache forces a cold reload of the labeled dataset.
	CleanCache bool

	// Interval is the pause between iterations.
	Interval time.Duration

	// EvalEvery is how many iterations pass between evaluations.
	// Adaptive passes run every BufferSize*EvalEvery iterations.
	EvalEvery int

	HistoryLimit int

	// MaxIterations stops the run, idle, after this many iterations. Zero runs until stopped.
	MaxIterations int

	Seed int64

	// ProgressInterval is how often a running trainer logs its meters.
	ProgressInterval time.Duration
}

func DefaultTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		WeightCap:        100,
		TargetAccuracy:   0,
		LearningRate:     0.05,
		BufferSize:       5,
		Interval:         10 * time.Millisecond,
		EvalEvery:        8,
		HistoryLimit:     100,
		Seed:             time.Now().UnixNano(),
		ProgressInterval: 10 * time.Second,
	}
}

func DefaultTestTrainerConfig() *TrainerConfig {
	c := DefaultTrainerConfig()
	c.Interval = time.Millisecond
	c.Seed = 42
	c.ProgressInterval = time.Hour
	return c
}
