package xplane

import (
	"math"
	"testing"
)

func TestFeetToMeters(t *testing.T) {
	cases := []struct {
		ft   float64
		want float64
	}{
		{0, 0},
		{1, 0.3048},
		{-100, -30.48},
		{3280.84, 1000.000032},
	}
	for _, tc := range cases {
		if got := FeetToMeters(tc.ft); math.Abs(got-tc.want) > 1e-6 {
			t.Fatalf("FeetToMeters(%v)=%v want %v", tc.ft, got, tc.want)
		}
	}
}

func TestKnotsToMPS(t *testing.T) {
	if got := KnotsToMPS(10); math.Abs(got-5.1444444444) > 1e-12 {
		t.Fatalf("KnotsToMPS(10)=%v", got)
	}
	if got := KnotsToMPS(0); got != 0 {
		t.Fatalf("KnotsToMPS(0)=%v", got)
	}
}
