package position

// Listener receives change notifications. Calls arrive on the provider's
// receive loop, one at a time, after the new state is visible through the
// accessors. Implementations must not block for long.
type Listener interface {
	StatusChanged(s Status)
	PositionChanged(pos Coordinates, acc Accuracy)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnStatus   func(Status)
	OnPosition func(Coordinates, Accuracy)
}

func (f ListenerFuncs) StatusChanged(s Status) {
	if f.OnStatus != nil {
		f.OnStatus(s)
	}
}

func (f ListenerFuncs) PositionChanged(pos Coordinates, acc Accuracy) {
	if f.OnPosition != nil {
		f.OnPosition(pos, acc)
	}
}

// Fanout delivers each notification to every listener in order.
type Fanout []Listener

func (f Fanout) StatusChanged(s Status) {
	for _, l := range f {
		if l != nil {
			l.StatusChanged(s)
		}
	}
}

func (f Fanout) PositionChanged(pos Coordinates, acc Accuracy) {
	for _, l := range f {
		if l != nil {
			l.PositionChanged(pos, acc)
		}
	}
}
