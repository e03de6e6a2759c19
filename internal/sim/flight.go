package sim

import (
	"context"
	"math"
	"time"

	"xplane-position/internal/xplane"
)

// Flight flies a clockwise circle around a center point, standing in for a
// running simulator.
type Flight struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltFeet      int
	GroundKt     int
	RadiusNm     float64
	Period       time.Duration
}

type Sample struct {
	LatDeg     float64
	LonDeg     float64
	AltFeet    float64
	HeadingDeg float64
	GroundKt   float64
}

func (f Flight) withDefaults() Flight {
	if f.Period <= 0 {
		f.Period = 120 * time.Second
	}
	if f.RadiusNm <= 0 {
		f.RadiusNm = 0.5
	}
	if f.GroundKt <= 0 {
		f.GroundKt = 90
	}
	if f.AltFeet == 0 {
		f.AltFeet = 3000
	}
	return f
}

// At is deterministic for a given now. Altitude oscillates 200 ft around
// AltFeet once per lap.
func (f Flight) At(now time.Time) Sample {
	f = f.withDefaults()

	phase := float64(now.UnixNano()%f.Period.Nanoseconds()) / float64(f.Period.Nanoseconds())
	theta := 2 * math.Pi * phase

	// ~60 NM per degree of latitude.
	radiusDeg := f.RadiusNm / 60.0
	north := radiusDeg * math.Cos(theta)
	east := radiusDeg * math.Sin(theta)

	return Sample{
		LatDeg:     f.CenterLatDeg + north,
		LonDeg:     f.CenterLonDeg + east/math.Cos(f.CenterLatDeg*math.Pi/180.0),
		AltFeet:    float64(f.AltFeet) + 200*math.Sin(theta),
		HeadingDeg: math.Mod(theta*180/math.Pi+90, 360),
		GroundKt:   float64(f.GroundKt),
	}
}

// Datagram encodes the sample at now as one DATA datagram.
func (f Flight) Datagram(now time.Time) []byte {
	s := f.At(now)
	return xplane.Encode(
		xplane.SpeedsEntry(float32(s.GroundKt)),
		xplane.HeadingEntry(float32(s.HeadingDeg)),
		xplane.PositionEntry(float32(s.LatDeg), float32(s.LonDeg), float32(s.AltFeet)),
	)
}

// Run sends a datagram every interval until ctx is done. Send errors are
// passed to onErr and do not stop the loop.
func Run(ctx context.Context, f Flight, interval time.Duration, send func([]byte) error, onErr func(error)) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if err := send(f.Datagram(time.Now())); err != nil && onErr != nil {
			onErr(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
