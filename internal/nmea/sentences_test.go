package nmea

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"xplane-position/internal/position"
)

func testState() position.State {
	return position.State{
		Status:    position.StatusAvailable,
		Position:  position.Coordinates{LatDeg: 48.1173, LonDeg: -11.516667, AltM: 545.4},
		Accuracy:  position.Accuracy{Level: position.AccuracyDetailed},
		SpeedMPS:  11.52,
		Direction: 84.4,
		Timestamp: time.Date(2026, 3, 23, 12, 35, 19, 0, time.UTC),
	}
}

func TestRMC_ParsesBack(t *testing.T) {
	line := RMC(testState())
	s, err := gonmea.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", line, err)
	}
	rmc, ok := s.(gonmea.RMC)
	if !ok {
		t.Fatalf("type=%T want RMC", s)
	}
	if rmc.Validity != gonmea.ValidRMC {
		t.Fatalf("validity=%q", rmc.Validity)
	}
	if math.Abs(rmc.Latitude-48.1173) > 1e-5 {
		t.Fatalf("lat=%v", rmc.Latitude)
	}
	if math.Abs(rmc.Longitude-(-11.516667)) > 1e-5 {
		t.Fatalf("lon=%v", rmc.Longitude)
	}
	// 11.52 m/s ~= 22.4 kt
	if math.Abs(rmc.Speed-22.4) > 0.05 {
		t.Fatalf("speed=%v", rmc.Speed)
	}
	if math.Abs(rmc.Course-84.4) > 1e-9 {
		t.Fatalf("course=%v", rmc.Course)
	}
	if rmc.Date.DD != 23 || rmc.Date.MM != 3 || rmc.Date.YY != 26 {
		t.Fatalf("date=%v", rmc.Date)
	}
}

func TestGGA_ParsesBack(t *testing.T) {
	line := GGA(testState())
	s, err := gonmea.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", line, err)
	}
	gga, ok := s.(gonmea.GGA)
	if !ok {
		t.Fatalf("type=%T want GGA", s)
	}
	if gga.FixQuality != gonmea.GPS {
		t.Fatalf("fix quality=%q", gga.FixQuality)
	}
	if math.Abs(gga.Altitude-545.4) > 1e-9 {
		t.Fatalf("alt=%v", gga.Altitude)
	}
	if gga.Time.Hour != 12 || gga.Time.Minute != 35 || gga.Time.Second != 19 {
		t.Fatalf("time=%v", gga.Time)
	}
}

func TestRMC_NotAvailableIsVoid(t *testing.T) {
	st := testState()
	st.Status = position.StatusAcquiring
	if !strings.HasPrefix(RMC(st), "$GPRMC,123519.00,V,") {
		t.Fatalf("rmc=%q", RMC(st))
	}
}

func TestDegMin_RoundsIntoNextDegree(t *testing.T) {
	if got := degMin(9.999999999, 2); got != "1000.0000" {
		t.Fatalf("degMin=%q want 1000.0000", got)
	}
	if got := degMin(8.5, 3); got != "00830.0000" {
		t.Fatalf("degMin=%q want 00830.0000", got)
	}
}

func TestNormalizeDeg(t *testing.T) {
	if got := normalizeDeg(-90); got != 270 {
		t.Fatalf("normalizeDeg(-90)=%v", got)
	}
	if got := normalizeDeg(360); got != 0 {
		t.Fatalf("normalizeDeg(360)=%v", got)
	}
}

type fakeSender struct {
	sent [][]string
	err  error
}

func (f *fakeSender) SendLines(lines ...string) error {
	f.sent = append(f.sent, lines)
	return f.err
}

type fixedState position.State

func (f fixedState) State() position.State { return position.State(f) }

func TestOutput_SendsOnPositionChange(t *testing.T) {
	st := testState()
	fs := &fakeSender{}
	out := NewOutput(fixedState(st), fs)

	out.StatusChanged(position.StatusAvailable)
	if len(fs.sent) != 0 {
		t.Fatalf("status change must not send")
	}

	pos := position.Coordinates{LatDeg: 1, LonDeg: 2, AltM: 3}
	out.PositionChanged(pos, position.Accuracy{Level: position.AccuracyDetailed})
	if len(fs.sent) != 1 || len(fs.sent[0]) != 2 {
		t.Fatalf("sent=%v", fs.sent)
	}
	s, err := gonmea.Parse(fs.sent[0][0])
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if rmc := s.(gonmea.RMC); math.Abs(rmc.Latitude-1) > 1e-6 {
		t.Fatalf("lat=%v want notification payload", rmc.Latitude)
	}
}

func TestOutput_SendErrorDoesNotPanic(t *testing.T) {
	fs := &fakeSender{err: errors.New("no route")}
	out := NewOutput(fixedState(testState()), fs)
	out.PositionChanged(position.Coordinates{}, position.Accuracy{})
	out.PositionChanged(position.Coordinates{}, position.Accuracy{})
	if out.lastErr != "no route" {
		t.Fatalf("lastErr=%q", out.lastErr)
	}
}
