package xplane

import (
	"encoding/binary"
	"math"
)

// Entry is one data set as X-Plane writes it on the wire.
type Entry struct {
	Tag    Tag
	Params [ParameterCount]float32
}

// Encode builds a DATA datagram. The byte after the magic is X-Plane's
// internal-use byte; it is written as '@' like the simulator does.
func Encode(entries ...Entry) []byte {
	out := make([]byte, 0, HeaderLength+len(entries)*EntryLength)
	out = append(out, magic[:]...)
	out = append(out, '@')
	for _, e := range entries {
		out = AppendEntry(out, e)
	}
	return out
}

func AppendEntry(dst []byte, e Entry) []byte {
	dst = append(dst, byte(e.Tag), 0, 0, 0)
	for _, p := range e.Params {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p))
	}
	return dst
}

func SpeedsEntry(groundKt float32) Entry {
	e := Entry{Tag: TagSpeeds}
	e.Params[3] = groundKt
	return e
}

func HeadingEntry(magneticDeg float32) Entry {
	e := Entry{Tag: TagHeading}
	e.Params[0] = magneticDeg
	return e
}

func PositionEntry(latDeg, lonDeg, altFt float32) Entry {
	e := Entry{Tag: TagPosition}
	e.Params[0] = latDeg
	e.Params[1] = lonDeg
	e.Params[2] = altFt
	return e
}
