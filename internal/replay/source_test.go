package replay

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xplane-position/internal/position"
	"xplane-position/internal/xplane"
)

type fakeClock struct {
	t      time.Time
	waited []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) wait(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	default:
	}
	if d < 0 {
		d = 0
	}
	c.waited = append(c.waited, d)
	c.t = c.t.Add(d)
	return true
}

func newFakeSource(t *testing.T, frames []Frame, speed float64, loop bool) (*Source, *fakeClock) {
	t.Helper()
	s, err := NewSource("test", frames, speed, loop)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}
	c := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.now = c.now
	s.wait = c.wait
	return s, c
}

var testFrames = []Frame{
	{At: 0, Data: []byte{1}},
	{At: 100 * time.Millisecond, Data: []byte{2}},
	{At: 300 * time.Millisecond, Data: []byte{3}},
}

func TestSource_HonorsSpacingAndSpeed(t *testing.T) {
	s, c := newFakeSource(t, testFrames, 2.0, false)
	buf := make([]byte, 16)

	for i, want := range []byte{1, 2, 3} {
		n, err := s.ReadDatagram(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if n != 1 || buf[0] != want {
			t.Fatalf("read %d: got %x want %x", i, buf[:n], want)
		}
	}
	if _, err := s.ReadDatagram(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want EOF", err)
	}

	want := []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond}
	if len(c.waited) != len(want) {
		t.Fatalf("waits=%v want %v", c.waited, want)
	}
	for i := range want {
		if c.waited[i] != want[i] {
			t.Fatalf("waits=%v want %v", c.waited, want)
		}
	}
}

func TestSource_Loop(t *testing.T) {
	s, _ := newFakeSource(t, testFrames, 1.0, true)
	buf := make([]byte, 16)

	var got []byte
	for i := 0; i < 7; i++ {
		n, err := s.ReadDatagram(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string([]byte{1, 2, 3, 1, 2, 3, 1}) {
		t.Fatalf("got %x", got)
	}
}

func TestSource_CloseUnblocksRead(t *testing.T) {
	s, err := NewSource("test", []Frame{{At: 0, Data: []byte{1}}, {At: time.Hour, Data: []byte{2}}}, 1.0, false)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}
	buf := make([]byte, 16)
	if _, err := s.ReadDatagram(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ReadDatagram(buf)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = s.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("err=%v want net.ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read not unblocked by Close")
	}
}

func TestNewSource_Validates(t *testing.T) {
	if _, err := NewSource("x", testFrames, 0, false); err == nil {
		t.Fatalf("expected error for zero speed")
	}
	if _, err := NewSource("x", nil, 1, false); err == nil {
		t.Fatalf("expected error for empty log")
	}
}

func TestOpener_FeedsProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.log")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t0 := time.Now()
	_ = w.WriteFrame(t0, xplane.Encode(xplane.PositionEntry(47.5, 8.5, 1500)))
	_ = w.WriteFrame(t0.Add(time.Millisecond), xplane.Encode(xplane.HeadingEntry(270), xplane.SpeedsEntry(100)))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	prov := position.New(position.Config{Open: Opener(path, 10, false)})
	defer prov.Close()
	if err := prov.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for prov.Direction() != 270 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if prov.Status() != position.StatusAvailable {
		t.Fatalf("status=%v want available", prov.Status())
	}
	if prov.Direction() != 270 {
		t.Fatalf("direction=%v want 270", prov.Direction())
	}
	if got := prov.Position(); got.LatDeg != 47.5 || got.LonDeg != 8.5 {
		t.Fatalf("position=%+v", got)
	}
}

func TestOpener_MissingFile(t *testing.T) {
	open := Opener(filepath.Join(t.TempDir(), "missing.log"), 1, false)
	if _, err := open(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want not exist", err)
	}
}
