package mode

import (
	"fmt"
	"regexp"
	"slices"
)

// TransportMode is how a trip was travelled.
// The zero value is Still; Unknown sorts after everything known.
type TransportMode int

const (
	Still TransportMode = iota
	Walking
	Bicycle
	Motorcycle
	Car
	Train
	Airplane
	Unknown TransportMode = -1
)

// All lists the known modes in enum order.
// Enum order is also the classifier's tie-break order.
var All = []TransportMode{
	Still,
	Walking,
	Bicycle,
	Motorcycle,
	Car,
	Train,
	Airplane,
}

var (
	modeStill      = regexp.MustCompile(`(?i)^(still|stationary|stopped)$`)
	modeWalking    = regexp.MustCompile(`(?i)^(walk|walking|foot|on_foot)$`)
	modeBicycle    = regexp.MustCompile(`(?i)^(bicycle|bike|biking|cycle|cycling)$`)
	modeMotorcycle = regexp.MustCompile(`(?i)^(motorcycle|motorbike|moto|scooter)$`)
	modeCar        = regexp.MustCompile(`(?i)^(car|drive|driving|automotive|automobile)$`)
	modeTrain      = regexp.MustCompile(`(?i)^(train|rail|railway|metro|subway)$`)
	modeAirplane   = regexp.MustCompile(`(?i)^(airplane|plane|fly|flying|flight)$`)
)

// IsKnown returns true if the mode is not Unknown.
func (m TransportMode) IsKnown() bool {
	return m >= Still && m <= Airplane
}

// IsMotorized returns whether the mode is engine-powered.
func (m TransportMode) IsMotorized() bool {
	return m >= Motorcycle && m <= Airplane
}

// String implements the Stringer interface.
func (m TransportMode) String() string {
	switch m {
	case Still:
		return "Still"
	case Walking:
		return "Walking"
	case Bicycle:
		return "Bicycle"
	case Motorcycle:
		return "Motorcycle"
	case Car:
		return "Car"
	case Train:
		return "Train"
	case Airplane:
		return "Airplane"
	}
	return "Unknown"
}

// Emoji returns a single emoji representation of the mode.
func (m TransportMode) Emoji() string {
	switch m {
	case Still:
		return "📍"
	case Walking:
		return "🚶"
	case Bicycle:
		return "🚴"
	case Motorcycle:
		return "🏍"
	case Car:
		return "🚗"
	case Train:
		return "🚆"
	case Airplane:
		return "✈️"
	}
	return "❓"
}

// MarshalText lets modes be used as JSON object keys.
func (m TransportMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText is strict: names that don't parse are an error,
// except the literal "Unknown".
func (m *TransportMode) UnmarshalText(text []byte) error {
	got := FromString(string(text))
	if got == Unknown && string(text) != Unknown.String() {
		return fmt.Errorf("unknown transport mode %q", string(text))
	}
	*m = got
	return nil
}

// FromString parses a mode name or one of its common aliases.
func FromString(str string) TransportMode {
	switch {
	case modeStill.MatchString(str):
		return Still
	case modeWalking.MatchString(str):
		return Walking
	case modeBicycle.MatchString(str):
		return Bicycle
	case modeMotorcycle.MatchString(str):
		return Motorcycle
	case modeCar.MatchString(str):
		return Car
	case modeTrain.MatchString(str):
		return Train
	case modeAirplane.MatchString(str):
		return Airplane
	}
	return Unknown
}

// FromAny parses a mode from a loosely typed value, eg. a GeoJSON property.
func FromAny(a any) TransportMode {
	switch v := a.(type) {
	case string:
		return FromString(v)
	case TransportMode:
		return v
	}
	return Unknown
}

// Sorted returns the given modes in enum order, dropping Unknown and duplicates.
func Sorted(modes []TransportMode) []TransportMode {
	out := make([]TransportMode, 0, len(modes))
	for _, m := range modes {
		if m.IsKnown() && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out
}
