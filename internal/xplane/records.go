package xplane

import "strconv"

// Tag is the data-set index X-Plane writes in the first byte of an entry.
type Tag uint8

const (
	TagSpeeds   Tag = 3
	TagHeading  Tag = 19
	TagPosition Tag = 20
)

func (t Tag) String() string {
	switch t {
	case TagSpeeds:
		return "speeds"
	case TagHeading:
		return "heading"
	case TagPosition:
		return "position"
	default:
		return "unknown_" + strconv.Itoa(int(t))
	}
}

// Record is one decoded entry. The set of implementations is closed.
type Record interface {
	Tag() Tag
	isRecord()
}

// Speeds carries ground speed (parameter 3 of data set 3).
type Speeds struct {
	GroundSpeedKt float32
}

// Heading carries the magnetic compass heading (parameter 0 of data set 19).
type Heading struct {
	MagneticDeg float32
}

// PositionFix carries lat/lon/alt (parameters 0..2 of data set 20).
type PositionFix struct {
	LatDeg float32
	LonDeg float32
	AltFt  float32
}

// Unknown is an entry with an unrecognized tag.
type Unknown struct {
	Raw Tag
}

func (Speeds) Tag() Tag      { return TagSpeeds }
func (Heading) Tag() Tag     { return TagHeading }
func (PositionFix) Tag() Tag { return TagPosition }
func (u Unknown) Tag() Tag   { return u.Raw }

func (Speeds) isRecord()      {}
func (Heading) isRecord()     {}
func (PositionFix) isRecord() {}
func (Unknown) isRecord()     {}
