package position

import (
	"fmt"
	"time"
)

type Status int

const (
	StatusUnavailable Status = iota
	StatusAcquiring
	StatusAvailable
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusAcquiring:
		return "acquiring"
	case StatusAvailable:
		return "available"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for c := StatusUnavailable; c <= StatusError; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Coordinates is a geodetic position. Latitude and longitude are degrees,
// altitude is meters. Values compare with ==.
type Coordinates struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

// AccuracyLevel is a discrete precision class, coarsest first.
type AccuracyLevel int

const (
	AccuracyNone AccuracyLevel = iota
	AccuracyCountry
	AccuracyRegion
	AccuracyLocality
	AccuracyPostalCode
	AccuracyStreet
	AccuracyDetailed
)

func (l AccuracyLevel) String() string {
	switch l {
	case AccuracyNone:
		return "none"
	case AccuracyCountry:
		return "country"
	case AccuracyRegion:
		return "region"
	case AccuracyLocality:
		return "locality"
	case AccuracyPostalCode:
		return "postal_code"
	case AccuracyStreet:
		return "street"
	case AccuracyDetailed:
		return "detailed"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func (l AccuracyLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *AccuracyLevel) UnmarshalText(b []byte) error {
	for c := AccuracyNone; c <= AccuracyDetailed; c++ {
		if c.String() == string(b) {
			*l = c
			return nil
		}
	}
	return fmt.Errorf("unknown accuracy level %q", b)
}

type Accuracy struct {
	Level       AccuracyLevel `json:"level"`
	HorizontalM float64       `json:"horizontal_m"`
	VerticalM   float64       `json:"vertical_m"`
}

// State is a value copy of everything the provider reports.
type State struct {
	Status    Status      `json:"status"`
	Position  Coordinates `json:"position"`
	Accuracy  Accuracy    `json:"accuracy"`
	SpeedMPS  float64     `json:"speed_mps"`
	Direction float64     `json:"direction_deg"`
	Timestamp time.Time   `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

// Snapshot is State plus receive diagnostics, taken under a single lock.
type Snapshot struct {
	State

	Initialized     bool    `json:"initialized"`
	FixStale        bool    `json:"fix_stale"`
	AgeSec          float64 `json:"age_sec,omitempty"`
	Datagrams       uint64  `json:"datagrams"`
	DroppedFrames   uint64  `json:"dropped_frames"`
	LastDecodeError string  `json:"last_decode_error,omitempty"`
}
