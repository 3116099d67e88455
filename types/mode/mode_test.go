package mode

import (
	"encoding/json"
	"testing"
)

func TestFromString(t *testing.T) {
	cases := []struct {
		in   string
		want TransportMode
	}{
		{"Still", Still},
		{"stationary", Still},
		{"walk", Walking},
		{"WALKING", Walking},
		{"bike", Bicycle},
		{"Cycling", Bicycle},
		{"moto", Motorcycle},
		{"automotive", Car},
		{"Car", Car},
		{"rail", Train},
		{"plane", Airplane},
		{"Airplane", Airplane},
		{"", Unknown},
		{"hovercraft", Unknown},
		{"carpet", Unknown},
	}
	for i, c := range cases {
		if got := FromString(c.in); got != c.want {
			t.Errorf("i=%d (%q) have %v want %v", i, c.in, got, c.want)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, m := range All {
		if got := FromString(m.String()); got != m {
			t.Errorf("have %v want %v", got, m)
		}
		if !m.IsKnown() {
			t.Errorf("%v should be known", m)
		}
	}
	if Unknown.IsKnown() {
		t.Error("Unknown should not be known")
	}
}

func TestTextKeys(t *testing.T) {
	in := map[TransportMode]int{Car: 2, Walking: 1}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"Car":2,"Walking":1}` {
		t.Errorf("unexpected json: %s", string(b))
	}
	out := map[TransportMode]int{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out[Car] != 2 || out[Walking] != 1 {
		t.Errorf("have %v", out)
	}
	if err := json.Unmarshal([]byte(`{"Hovercraft":1}`), &out); err == nil {
		t.Error("expected error for unknown mode key")
	}
}

func TestSorted(t *testing.T) {
	got := Sorted([]TransportMode{Train, Unknown, Walking, Train, Still})
	want := []TransportMode{Still, Walking, Train}
	if len(got) != len(want) {
		t.Fatalf("have %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("i=%d have %v want %v", i, got[i], want[i])
		}
	}
}
