package position

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"xplane-position/internal/metrics"
	"xplane-position/internal/udp"
	"xplane-position/internal/xplane"
)

const (
	DefaultListenAddr = "127.0.0.1:40000"
	DefaultStaleAfter = 5 * time.Second

	defaultQueueLen    = 64
	defaultMaxDatagram = 64 * 1024
)

var ErrAlreadyInitialized = errors.New("position provider already initialized")

// Source yields raw datagrams, one per call, in arrival order.
// Close must unblock a pending ReadDatagram.
type Source interface {
	ReadDatagram(buf []byte) (int, error)
	Close() error
}

type Opener func(ctx context.Context) (Source, error)

// Recorder receives every datagram before it is decoded.
type Recorder interface {
	WriteFrame(now time.Time, frame []byte) error
}

type Config struct {
	// ListenAddr is the UDP address bound by the default opener.
	ListenAddr string
	// ReadBuffer sets SO_RCVBUF on the socket when > 0.
	ReadBuffer int
	// QueueLen bounds the datagrams handed from the socket reader to the
	// fold loop.
	QueueLen int
	// StaleAfter marks an Available fix as stale in Snapshot once no
	// datagram has been parsed for this long.
	StaleAfter time.Duration

	// Open replaces the UDP socket, e.g. with a replay log.
	Open Opener
	// Recorder is optional.
	Recorder Recorder
}

// Provider turns X-Plane DATA datagrams into a change-detected position feed.
//
// All state mutation happens on one goroutine (the fold loop, or the caller of
// Process when the provider is driven directly). Accessors return copies.
type Provider struct {
	cfg      Config
	listener Fanout
	now      func() time.Time

	mu            sync.RWMutex
	state         State
	started       bool
	src           Source
	datagrams     uint64
	dropped       uint64
	lastDecodeErr string
	lastRecordErr string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, listeners ...Listener) *Provider {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = defaultQueueLen
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &Provider{
		cfg:      cfg,
		listener: Fanout(listeners),
		now:      time.Now,
		state:    State{Status: StatusUnavailable},
	}
}

// AddListener registers l for notifications. Listeners can only be added
// before Initialize.
func (p *Provider) AddListener(l Listener) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyInitialized
	}
	p.listener = append(p.listener, l)
	return nil
}

// NewInstance returns a fresh, uninitialized provider with the same config and
// no listeners.
func (p *Provider) NewInstance() *Provider {
	return New(p.cfg)
}

// Initialize starts acquisition: status becomes Acquiring, the datagram source
// is opened and the receive loop starts. It may be called at most once per
// provider; later calls return ErrAlreadyInitialized.
//
// If the source cannot be opened the status becomes Error and Error() reports
// the cause.
func (p *Provider) Initialize(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("position provider is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyInitialized
	}
	p.started = true
	p.mu.Unlock()

	p.setStatus(StatusAcquiring, "")

	open := p.cfg.Open
	if open == nil {
		open = p.openUDP
	}
	src, err := open(ctx)
	if err != nil {
		p.setStatus(StatusError, err.Error())
		log.Printf("xplane provider open failed: %v", err)
		return fmt.Errorf("open datagram source: %w", err)
	}

	childCtx, cancel := context.WithCancel(ctx)
	queue := make(chan []byte, p.cfg.QueueLen)

	p.mu.Lock()
	p.src = src
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(2)
	go p.readLoop(childCtx, src, queue)
	go p.foldLoop(childCtx, queue)
	// Cancelling ctx releases the source the same way Close does.
	context.AfterFunc(childCtx, func() { p.release(src) })

	log.Printf("xplane provider initialized source=%s", describe(src))
	return nil
}

func (p *Provider) openUDP(ctx context.Context) (Source, error) {
	l, err := udp.Listen(ctx, p.cfg.ListenAddr, p.cfg.ReadBuffer)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (p *Provider) IsInitialized() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.src != nil
}

// Close releases the source and waits for the receive loop to exit. No
// notifications are delivered after Close returns.
func (p *Provider) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.mu.RLock()
	src := p.src
	p.mu.RUnlock()
	if src != nil {
		p.release(src)
	}
	p.wg.Wait()
}

// release detaches src and closes it, unblocking a pending read.
func (p *Provider) release(src Source) {
	p.mu.Lock()
	if p.src == src {
		p.src = nil
	}
	p.mu.Unlock()
	_ = src.Close()
}

func (p *Provider) readLoop(ctx context.Context, src Source, queue chan<- []byte) {
	defer p.wg.Done()
	defer close(queue)

	buf := make([]byte, defaultMaxDatagram)
	for {
		n, err := src.ReadDatagram(buf)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
			case errors.Is(err, io.EOF):
				log.Printf("xplane source exhausted source=%s", describe(src))
			default:
				log.Printf("xplane receive stopped: %v", err)
			}
			return
		}
		d := append([]byte(nil), buf[:n]...)
		select {
		case queue <- d:
		case <-ctx.Done():
			return
		}
	}
}

// foldLoop wakes on the first queued datagram and drains everything pending
// before blocking again.
func (p *Provider) foldLoop(ctx context.Context, queue <-chan []byte) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-queue:
			if !ok {
				return
			}
			batch, open := drain(queue, [][]byte{d})
			p.HandleDatagrams(batch...)
			if !open {
				return
			}
		}
	}
}

func drain(queue <-chan []byte, batch [][]byte) ([][]byte, bool) {
	for {
		select {
		case d, ok := <-queue:
			if !ok {
				return batch, false
			}
			batch = append(batch, d)
		default:
			return batch, true
		}
	}
}

// HandleDatagrams processes datagrams independently and in order. Rejected
// frames are dropped.
func (p *Provider) HandleDatagrams(datagrams ...[]byte) {
	for _, d := range datagrams {
		_ = p.Process(d)
	}
}

// Process decodes one datagram, folds it into the state and emits the
// resulting notifications. A malformed datagram leaves the state untouched and
// returns the *xplane.DecodeError.
func (p *Provider) Process(datagram []byte) error {
	now := p.now()
	metrics.ObserveDatagram(len(datagram))
	p.record(now, datagram)

	recs, err := xplane.Parse(datagram)
	if err != nil {
		metrics.ObserveDecodeError(decodeReason(err))
		p.mu.Lock()
		p.datagrams++
		p.dropped++
		p.lastDecodeErr = err.Error()
		p.mu.Unlock()
		return err
	}
	for _, r := range recs {
		metrics.ObserveRecord(r.Tag().String())
	}

	p.mu.Lock()
	p.datagrams++
	prev := p.state
	next := fold(prev, recs, now)
	p.state = next
	p.mu.Unlock()

	if next.Status != prev.Status {
		metrics.ObserveNotification("status")
		p.listener.StatusChanged(next.Status)
	}
	if !sameCoordinates(next.Position, prev.Position) || !sameAccuracy(next.Accuracy, prev.Accuracy) {
		metrics.ObserveNotification("position")
		p.listener.PositionChanged(next.Position, next.Accuracy)
	}
	return nil
}

// fold applies records in order; later records of the same kind win.
func fold(st State, recs []xplane.Record, now time.Time) State {
	for _, r := range recs {
		switch v := r.(type) {
		case xplane.Speeds:
			st.SpeedMPS = xplane.KnotsToMPS(float64(v.GroundSpeedKt))
		case xplane.Heading:
			st.Direction = float64(v.MagneticDeg)
		case xplane.PositionFix:
			st.Position = Coordinates{
				LatDeg: float64(v.LatDeg),
				LonDeg: float64(v.LonDeg),
				AltM:   xplane.FeetToMeters(float64(v.AltFt)),
			}
			st.Accuracy.Level = AccuracyDetailed
			st.Status = StatusAvailable
		}
	}
	st.Timestamp = now
	return st
}

// sameCoordinates compares bit patterns so that a repeated NaN field counts
// as unchanged.
func sameCoordinates(a, b Coordinates) bool {
	return sameFloat(a.LatDeg, b.LatDeg) && sameFloat(a.LonDeg, b.LonDeg) && sameFloat(a.AltM, b.AltM)
}

func sameAccuracy(a, b Accuracy) bool {
	return a.Level == b.Level && sameFloat(a.HorizontalM, b.HorizontalM) && sameFloat(a.VerticalM, b.VerticalM)
}

func sameFloat(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

func (p *Provider) setStatus(s Status, errMsg string) {
	p.mu.Lock()
	prev := p.state.Status
	p.state.Status = s
	p.state.Error = errMsg
	p.mu.Unlock()

	if s != prev {
		metrics.ObserveNotification("status")
		p.listener.StatusChanged(s)
	}
}

func (p *Provider) record(now time.Time, frame []byte) {
	if p.cfg.Recorder == nil {
		return
	}
	err := p.cfg.Recorder.WriteFrame(now, frame)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	// Only log transitions to keep a broken disk from flooding the log.
	if msg != p.lastRecordErr && msg != "" {
		log.Printf("xplane record failed: %v", err)
	}
	p.lastRecordErr = msg
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, xplane.ErrShortFrame):
		return "short"
	case errors.Is(err, xplane.ErrBadMagic):
		return "magic"
	case errors.Is(err, xplane.ErrMisaligned):
		return "misaligned"
	default:
		return "other"
	}
}

func describe(src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
