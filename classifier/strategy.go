package classifier

import (
	"fmt"
	"regexp"
)

// Strategy selects how features are compared to a model.
type Strategy int

const (
	// RangeBased scores 1 inside [min, max] and decays by ratio outside.
	RangeBased Strategy = iota
	// IdealBased scores a Gaussian similarity around the ideal.
	IdealBased
	// Combined blends the two by the model's StrategyBlend.
	Combined
)

var (
	strategyRange    = regexp.MustCompile(`(?i)^(range|range[-_]?based)$`)
	strategyIdeal    = regexp.MustCompile(`(?i)^(ideal|ideal[-_]?based|gauss|gaussian)$`)
	strategyCombined = regexp.MustCompile(`(?i)^(combined|blend|both)$`)
)

func (s Strategy) String() string {
	switch s {
	case RangeBased:
		return "range"
	case IdealBased:
		return "ideal"
	case Combined:
		return "combined"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// StrategyFromString parses a strategy name.
func StrategyFromString(str string) (Strategy, error) {
	switch {
	case strategyRange.MatchString(str):
		return RangeBased, nil
	case strategyIdeal.MatchString(str):
		return IdealBased, nil
	case strategyCombined.MatchString(str):
		return Combined, nil
	}
	return RangeBased, fmt.Errorf("unknown strategy %q (want range, ideal or combined)", str)
}

// Set implements pflag.Value.
func (s *Strategy) Set(str string) error {
	got, err := StrategyFromString(str)
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// Type implements pflag.Value.
func (s *Strategy) Type() string {
	return "strategy"
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	return s.Set(string(text))
}
