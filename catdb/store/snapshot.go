package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrInvalidExport    = errors.New("invalid snapshot export")
)

// Metadata describes a saved snapshot. It is stored in the shared index, apart from the models.
type Metadata struct {
	Name         string                     `json:"name"`
	CreatedAt    time.Time                  `json:"createdAt"`
	Accuracy     float64                    `json:"accuracy"`
	SampleCounts map[mode.TransportMode]int `json:"sampleCounts,omitempty"`
	TotalSamples int                        `json:"totalSamples"`
	Iterations   int                        `json:"iterations"`
	Strategy     classifier.Strategy        `json:"strategy"`
}

// AccuracyPercent renders accuracy as a fixed-point percentage, eg. "93.75".
func (m Metadata) AccuracyPercent() string {
	return decimal.NewFromFloat(m.Accuracy).Shift(2).StringFixed(2)
}

func (m Metadata) clone() Metadata {
	m.SampleCounts = maps.Clone(m.SampleCounts)
	return m
}

// Snapshot is an immutable named model set. It is also the export format.
type Snapshot struct {
	Metadata Metadata           `json:"metadata"`
	Models   calibration.Models `json:"models"`
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Metadata: s.Metadata.clone(),
		Models:   s.Models.Clone(),
	}
}

// sortMetadata orders by accuracy, best first, then by name.
func sortMetadata(list []Metadata) {
	slices.SortFunc(list, func(a, b Metadata) int {
		if c := cmp.Compare(b.Accuracy, a.Accuracy); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// ParseExport checks and decodes an exported snapshot.
func ParseExport(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not JSON", ErrInvalidExport)
	}
	if name := gjson.GetBytes(data, "metadata.name"); name.String() == "" {
		return nil, fmt.Errorf("%w: missing metadata.name", ErrInvalidExport)
	}
	if models := gjson.GetBytes(data, "models"); !models.IsObject() {
		return nil, fmt.Errorf("%w: models must be an object", ErrInvalidExport)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	for m, model := range snap.Models {
		if model == nil {
			delete(snap.Models, m)
			continue
		}
		model.Clip()
	}
	return snap, nil
}
