package common

import (
	"math"
	"testing"
)

func TestDecimalToFixed(t *testing.T) {
	cases := []struct {
		in        float64
		precision int
		want      float64
	}{
		{1.2345, 2, 1.23},
		{1.235, 2, 1.24},
		{-1.235, 2, -1.24},
		{0.8, 0, 1},
		{12, 3, 12},
	}
	for i, c := range cases {
		if got := DecimalToFixed(c.in, c.precision); got != c.want {
			t.Errorf("i=%d have %v want %v", i, got, c.want)
		}
	}
	if !math.IsNaN(DecimalToFixed(math.NaN(), 2)) {
		t.Error("NaN should pass through")
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.875, 2); got != "87.50%" {
		t.Errorf("have %s", got)
	}
	if got := Percent(1, 0); got != "100%" {
		t.Errorf("have %s", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(3, 0, 1) != 1 || Clamp(-3, 0, 1) != 0 || Clamp(0.5, 0, 1) != 0.5 {
		t.Error("clamp bounds")
	}
	if Clamp(math.NaN(), 0.1, 0.9) != 0.1 {
		t.Error("NaN should clamp to lo")
	}
}
