package xplane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// X-Plane "DATA" output layout:
//
//	"DATA" + 1 byte, then N entries of
//	[tag][3 pad bytes][8 x float32 little-endian]
const (
	HeaderLength   = 4 + 1
	MetaDataLength = 4
	ParameterSize  = 4
	ParameterCount = 8
	EntryLength    = MetaDataLength + ParameterSize*ParameterCount
)

var magic = [4]byte{'D', 'A', 'T', 'A'}

var (
	ErrShortFrame = errors.New("frame shorter than header")
	ErrBadMagic   = errors.New("frame does not start with DATA")
	ErrMisaligned = errors.New("payload is not a whole number of entries")
)

// DecodeError rejects a whole datagram. No records are returned with it.
type DecodeError struct {
	Len int
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("xplane decode len=%d: %v", e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode validates one datagram and returns its recognized records in buffer
// order. Entries with unknown tags are dropped.
func Decode(b []byte) ([]Record, error) {
	recs, err := Parse(b)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if _, unknown := r.(Unknown); unknown {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Parse is Decode without the Unknown filter.
func Parse(b []byte) ([]Record, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	payload := b[HeaderLength:]
	recs := make([]Record, 0, len(payload)/EntryLength)
	for off := 0; off < len(payload); off += EntryLength {
		recs = append(recs, parseEntry(payload[off:off+EntryLength]))
	}
	return recs, nil
}

func validate(b []byte) error {
	if len(b) < HeaderLength {
		return &DecodeError{Len: len(b), Err: ErrShortFrame}
	}
	if [4]byte(b[:4]) != magic {
		return &DecodeError{Len: len(b), Err: ErrBadMagic}
	}
	if (len(b)-HeaderLength)%EntryLength != 0 {
		return &DecodeError{Len: len(b), Err: ErrMisaligned}
	}
	return nil
}

// parseEntry expects exactly EntryLength bytes.
func parseEntry(e []byte) Record {
	tag := Tag(e[0])
	switch tag {
	case TagSpeeds:
		return Speeds{GroundSpeedKt: param(e, 3)}
	case TagHeading:
		return Heading{MagneticDeg: param(e, 0)}
	case TagPosition:
		return PositionFix{
			LatDeg: param(e, 0),
			LonDeg: param(e, 1),
			AltFt:  param(e, 2),
		}
	default:
		return Unknown{Raw: tag}
	}
}

func param(e []byte, i int) float32 {
	off := MetaDataLength + ParameterSize*i
	return math.Float32frombits(binary.LittleEndian.Uint32(e[off : off+ParameterSize]))
}
