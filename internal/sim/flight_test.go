package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"xplane-position/internal/xplane"
)

func TestFlight_At_StaysOnCircle(t *testing.T) {
	f := Flight{CenterLatDeg: 45, CenterLonDeg: -122, RadiusNm: 1, Period: 60 * time.Second}
	base := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)

	radiusDeg := f.RadiusNm / 60.0
	for i := 0; i < 60; i++ {
		s := f.At(base.Add(time.Duration(i) * time.Second))
		north := s.LatDeg - f.CenterLatDeg
		east := (s.LonDeg - f.CenterLonDeg) * math.Cos(f.CenterLatDeg*math.Pi/180.0)
		if r := math.Hypot(north, east); math.Abs(r-radiusDeg) > 1e-9 {
			t.Fatalf("i=%d radius=%v want %v", i, r, radiusDeg)
		}
		if s.HeadingDeg < 0 || s.HeadingDeg >= 360 {
			t.Fatalf("i=%d heading out of range: %v", i, s.HeadingDeg)
		}
		if math.Abs(s.AltFeet-3000) > 200 {
			t.Fatalf("i=%d alt=%v", i, s.AltFeet)
		}
	}
}

func TestFlight_At_Deterministic(t *testing.T) {
	f := Flight{CenterLatDeg: 1, CenterLonDeg: 2}
	now := time.Date(2025, 12, 20, 19, 0, 0, 123, time.UTC)
	if f.At(now) != f.At(now) {
		t.Fatalf("expected deterministic result for same now")
	}
}

func TestFlight_Datagram_Decodes(t *testing.T) {
	f := Flight{CenterLatDeg: 47.5, CenterLonDeg: 8.5, AltFeet: 5000, GroundKt: 120}
	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	want := f.At(now)

	recs, err := xplane.Decode(f.Datagram(now))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d want 3", len(recs))
	}
	sp, ok := recs[0].(xplane.Speeds)
	if !ok || sp.GroundSpeedKt != 120 {
		t.Fatalf("record 0=%#v", recs[0])
	}
	hd, ok := recs[1].(xplane.Heading)
	if !ok || math.Abs(float64(hd.MagneticDeg)-want.HeadingDeg) > 1e-3 {
		t.Fatalf("record 1=%#v want heading %v", recs[1], want.HeadingDeg)
	}
	pos, ok := recs[2].(xplane.PositionFix)
	if !ok || math.Abs(float64(pos.LatDeg)-want.LatDeg) > 1e-4 || math.Abs(float64(pos.AltFt)-want.AltFeet) > 1e-2 {
		t.Fatalf("record 2=%#v want %+v", recs[2], want)
	}
}

func TestRun_SendsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu    sync.Mutex
		sent  int
		fails int
	)
	send := func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sent++
		if sent >= 3 {
			cancel()
		}
		if sent == 2 {
			return errors.New("network unreachable")
		}
		return nil
	}
	onErr := func(error) {
		mu.Lock()
		fails++
		mu.Unlock()
	}

	err := Run(ctx, Flight{}, time.Millisecond, send, onErr)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if sent < 3 || fails != 1 {
		t.Fatalf("sent=%d fails=%d want >=3/1", sent, fails)
	}
}
