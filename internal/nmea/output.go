package nmea

import (
	"log"

	"xplane-position/internal/position"
)

type lineSender interface {
	SendLines(lines ...string) error
}

type stateReader interface {
	State() position.State
}

// Output sends RMC+GGA as one datagram on every position change.
type Output struct {
	src  stateReader
	dest lineSender

	lastErr string
}

func NewOutput(src stateReader, dest lineSender) *Output {
	return &Output{src: src, dest: dest}
}

func (o *Output) StatusChanged(position.Status) {}

func (o *Output) PositionChanged(pos position.Coordinates, acc position.Accuracy) {
	st := o.src.State()
	// The notification payload is authoritative for position.
	st.Position = pos
	st.Accuracy = acc

	err := o.dest.SendLines(RMC(st), GGA(st))
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg != "" && msg != o.lastErr {
		log.Printf("nmea send failed: %v", err)
	}
	o.lastErr = msg
}
