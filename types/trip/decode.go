package trip

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/tidwall/gjson"
)

var ErrDecodeTrips = fmt.Errorf("could not decode as geojson feature or featurecollection or fixes or ndgeojson")

// fixesObject is the plain, non-GeoJSON trip encoding.
type fixesObject struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	Fixes []Fix  `json:"fixes"`
}

// Decode is a serial collection of attempts to turn the input into trips.
// It accepts a GeoJSON FeatureCollection, a single GeoJSON Feature,
// a plain {"mode": ..., "fixes": [...]} object, or newline-delimited GeoJSON features.
func Decode(data []byte) ([]*Trip, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	// Is it a geojson.FeatureCollection object?
	if res := gjson.GetBytes(data, "features"); res.Exists() && res.IsArray() {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		out := make([]*Trip, 0, len(fc.Features))
		for i, f := range fc.Features {
			t, err := FromFeature(f)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			out = append(out, t)
		}
		return out, nil
	}

	// A plain fixes object.
	if res := gjson.GetBytes(data, "fixes"); res.Exists() && res.IsArray() {
		obj := fixesObject{}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return []*Trip{{ID: obj.ID, Mode: mode.FromString(obj.Mode), Fixes: obj.Fixes}}, nil
	}

	// One or many newline-delimited features.
	var out []*Trip
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if gjson.GetBytes(line, "type").String() != "Feature" {
			return nil, ErrDecodeTrips
		}
		t := &Trip{}
		if err := t.UnmarshalJSON(line); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDecodeTrips
	}
	return out, nil
}
