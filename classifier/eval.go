package classifier

import (
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
)

// Labeled is a trip reduced to its features, with its ground truth.
type Labeled struct {
	ID      string
	Mode    mode.TransportMode
	Metrics features.Metrics
}

// Evaluation is the outcome of classifying a labeled set.
type Evaluation struct {
	Total       int
	Correct     int
	Accuracy    float64
	Predictions []mode.TransportMode
}

// Evaluate classifies every labeled example.
// Accuracy is 0 for an empty set.
func Evaluate(models calibration.Models, labeled []Labeled, strategy Strategy) Evaluation {
	ev := Evaluation{
		Total:       len(labeled),
		Predictions: make([]mode.TransportMode, len(labeled)),
	}
	for i, l := range labeled {
		ev.Predictions[i] = DetectMetrics(l.Metrics, models, strategy)
		if ev.Predictions[i] == l.Mode {
			ev.Correct++
		}
	}
	if ev.Total > 0 {
		ev.Accuracy = float64(ev.Correct) / float64(ev.Total)
	}
	return ev
}
