package trainer

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/types/mode"
)

type Status int

const (
	Idle Status = iota
	Running
	Converged
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "converged":
		*s = Converged
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// State is a snapshot of a training run.
type State struct {
	RunID           string                     `json:"runId"`
	Running         bool                       `json:"running"`
	Status          Status                     `json:"status"`
	Strategy        classifier.Strategy        `json:"strategy"`
	Iteration       int                        `json:"iteration"`
	Epoch           int                        `json:"epoch"`
	Accuracy        float64                    `json:"accuracy"`
	TotalSamples    int                        `json:"totalSamples"`
	CorrectSamples  int                        `json:"correctSamples"`
	AccuracyHistory []float64                  `json:"accuracyHistory"`
	SampleCounts    map[mode.TransportMode]int `json:"sampleCounts"`
	Models          calibration.Models         `json:"models"`
	Elapsed         time.Duration              `json:"elapsed"`
	Errors          int                        `json:"errors"`
	Adaptations     int                        `json:"adaptations"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.AccuracyHistory = slices.Clone(s.AccuracyHistory)
	s.SampleCounts = maps.Clone(s.SampleCounts)
	s.Models = s.Models.Clone()
	return s
}
