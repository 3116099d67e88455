package trip

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rotblauer/catmode/types/mode"
)

var t0 = time.Date(2024, 11, 18, 17, 54, 27, 0, time.UTC)

func testTrip() *Trip {
	return &Trip{
		ID:   "walk-1",
		Mode: mode.Walking,
		Fixes: []Fix{
			{Time: t0, Lat: 46.9292804, Lon: -114.0877518},
			{Time: t0.Add(30 * time.Second), Lat: 46.9293804, Lon: -114.0877518},
			{Time: t0.Add(60 * time.Second), Lat: 46.9294804, Lon: -114.0876518},
		},
	}
}

func TestTrip_JSONRoundTrip(t *testing.T) {
	in := testTrip()
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out := &Trip{}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Mode != in.Mode || len(out.Fixes) != len(in.Fixes) {
		t.Fatalf("have %+v want %+v", out, in)
	}
	for i := range in.Fixes {
		if !out.Fixes[i].Time.Equal(in.Fixes[i].Time) ||
			out.Fixes[i].Lat != in.Fixes[i].Lat ||
			out.Fixes[i].Lon != in.Fixes[i].Lon {
			t.Errorf("fix %d: have %+v want %+v", i, out.Fixes[i], in.Fixes[i])
		}
	}
}

func TestTrip_Validate(t *testing.T) {
	tr := testTrip()
	if err := tr.Validate(); err != nil {
		t.Fatal(err)
	}
	tr.Fixes[2].Time = tr.Fixes[1].Time
	if err := tr.Validate(); !errors.Is(err, ErrUnordered) {
		t.Errorf("expected ErrUnordered, got %v", err)
	}
	tr.Sanitize()
	if len(tr.Fixes) != 2 {
		t.Errorf("sanitize should drop the duplicate timestamp, have %d fixes", len(tr.Fixes))
	}
	if err := tr.Validate(); err != nil {
		t.Error(err)
	}
}

func TestTrip_Length(t *testing.T) {
	tr := testTrip()
	l := tr.Length()
	// About 11 m north, then about 13 m diagonally.
	if l < 15 || l > 35 {
		t.Errorf("unexpected length %f", l)
	}
	if tr.Duration() != time.Minute {
		t.Errorf("have %v want 1m", tr.Duration())
	}
}

func TestDecode(t *testing.T) {
	one, err := json.Marshal(testTrip())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		in   string
		want int
	}{
		{"feature", string(one), 1},
		{"ndjson", string(one) + "\n" + string(one) + "\n", 2},
		{"collection", `{"type":"FeatureCollection","features":[` + string(one) + `]}`, 1},
		{"fixes", `{"mode":"car","fixes":[{"time":"2024-11-18T17:54:27Z","lat":1,"lon":2},{"time":"2024-11-18T17:55:27Z","lat":1.01,"lon":2}]}`, 1},
	}
	for _, c := range cases {
		got, err := Decode([]byte(c.in))
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if len(got) != c.want {
			t.Errorf("%s: have %d trips want %d", c.name, len(got), c.want)
		}
	}

	if _, err := Decode([]byte(`{"foo":"bar"}`)); err == nil {
		t.Error("expected decode error")
	}
}
