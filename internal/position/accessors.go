package position

import "time"

func (p *Provider) State() State {
	if p == nil {
		return State{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Provider) Status() Status        { return p.State().Status }
func (p *Provider) Position() Coordinates { return p.State().Position }
func (p *Provider) Accuracy() Accuracy    { return p.State().Accuracy }
func (p *Provider) Speed() float64        { return p.State().SpeedMPS }
func (p *Provider) Direction() float64    { return p.State().Direction }
func (p *Provider) Timestamp() time.Time  { return p.State().Timestamp }
func (p *Provider) Error() string         { return p.State().Error }

// Snapshot returns the state and receive diagnostics from one read.
func (p *Provider) Snapshot(now time.Time) Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		State:           p.state,
		Initialized:     p.src != nil,
		Datagrams:       p.datagrams,
		DroppedFrames:   p.dropped,
		LastDecodeError: p.lastDecodeErr,
	}
	if !p.state.Timestamp.IsZero() {
		age := now.Sub(p.state.Timestamp)
		if age < 0 {
			age = 0
		}
		snap.AgeSec = age.Seconds()
		snap.FixStale = p.state.Status == StatusAvailable && age > p.cfg.StaleAfter
	}
	return snap
}
