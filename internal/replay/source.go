package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"xplane-position/internal/position"
)

// Source plays a loaded datagram log back with its recorded spacing, scaled
// by speed. It satisfies position.Source: ReadDatagram returns io.EOF once the
// log is exhausted (never, when looping) and net.ErrClosed after Close.
type Source struct {
	name   string
	frames []Frame
	speed  float64
	loop   bool

	now  func() time.Time
	wait func(d time.Duration, stop <-chan struct{}) bool

	next   int
	origin time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func NewSource(name string, frames []Frame, speed float64, loop bool) (*Source, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("replay speed must be > 0, got %v", speed)
	}
	if len(frames) == 0 {
		return nil, errors.New("replay log has no datagrams")
	}
	return &Source{
		name:   name,
		frames: frames,
		speed:  speed,
		loop:   loop,
		now:    time.Now,
		wait:   sleep,
		closed: make(chan struct{}),
	}, nil
}

func sleep(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

func (s *Source) ReadDatagram(buf []byte) (int, error) {
	if s.next >= len(s.frames) {
		if !s.loop {
			return 0, io.EOF
		}
		s.next = 0
		s.origin = time.Time{}
	}
	fr := s.frames[s.next]

	if s.origin.IsZero() {
		s.origin = s.now().Add(-s.scaled(fr.At))
	}
	due := s.origin.Add(s.scaled(fr.At))
	if !s.wait(due.Sub(s.now()), s.closed) {
		return 0, net.ErrClosed
	}

	s.next++
	return copy(buf, fr.Data), nil
}

func (s *Source) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) / s.speed)
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *Source) String() string {
	return "replay://" + s.name
}

// Opener loads path and returns an opener that plays it in place of the
// UDP socket.
func Opener(path string, speed float64, loop bool) position.Opener {
	return func(ctx context.Context) (position.Source, error) {
		frames, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		src, err := NewSource(path, frames, speed, loop)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}
