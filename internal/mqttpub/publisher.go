// Package mqttpub mirrors provider notifications onto MQTT topics.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"xplane-position/internal/position"
)

type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	// PublishTimeout bounds how long a notification waits on the broker.
	PublishTimeout time.Duration
	// QueueLen bounds the notifications waiting for the broker. Notifications
	// arriving while the queue is full are dropped.
	QueueLen int
}

const defaultQueueLen = 64

// client is the subset of mqtt.Client used here.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type StatusMessage struct {
	Status position.Status `json:"status"`
	Stamp  int64           `json:"stamp"`
}

type PositionMessage struct {
	Position  position.Coordinates `json:"position"`
	Accuracy  position.Accuracy    `json:"accuracy"`
	SpeedMPS  float64              `json:"speed_mps"`
	Direction float64              `json:"direction_deg"`
	Stamp     int64                `json:"stamp"`
}

type stateReader interface {
	State() position.State
}

type message struct {
	topic   string
	body    any
	flushed chan struct{}
}

// Publisher implements position.Listener. Notifications are queued and
// published by one worker goroutine, so a slow broker never stalls the
// provider.
type Publisher struct {
	cfg Config
	c   client
	src stateReader
	now func() time.Time

	queue     chan message
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	mu       sync.Mutex
	lastErr  string
	dropping bool
}

// Connect dials the broker. An empty ClientID gets a random suffix so two
// bridges on one broker do not kick each other off.
func Connect(cfg Config, src stateReader) (*Publisher, error) {
	cfg = withDefaults(cfg)
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Printf("mqtt connected broker=%s client_id=%s prefix=%s", cfg.Broker, cfg.ClientID, cfg.TopicPrefix)
	return newPublisher(cfg, c, src), nil
}

func newPublisher(cfg Config, c client, src stateReader) *Publisher {
	cfg = withDefaults(cfg)
	p := &Publisher{
		cfg:   cfg,
		c:     c,
		src:   src,
		now:   time.Now,
		queue: make(chan message, cfg.QueueLen),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func withDefaults(cfg Config) Config {
	if cfg.ClientID == "" {
		cfg.ClientID = "xplane-position-" + uuid.NewString()[:8]
	}
	cfg.TopicPrefix = strings.TrimRight(strings.TrimSpace(cfg.TopicPrefix), "/")
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "xplane"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = defaultQueueLen
	}
	return cfg
}

func (p *Publisher) StatusTopic() string   { return p.cfg.TopicPrefix + "/status" }
func (p *Publisher) PositionTopic() string { return p.cfg.TopicPrefix + "/position" }

func (p *Publisher) StatusChanged(s position.Status) {
	p.enqueue(message{topic: p.StatusTopic(), body: StatusMessage{Status: s, Stamp: p.now().UnixMilli()}})
}

func (p *Publisher) PositionChanged(pos position.Coordinates, acc position.Accuracy) {
	msg := PositionMessage{Position: pos, Accuracy: acc, Stamp: p.now().UnixMilli()}
	if p.src != nil {
		st := p.src.State()
		msg.SpeedMPS = st.SpeedMPS
		msg.Direction = st.Direction
	}
	p.enqueue(message{topic: p.PositionTopic(), body: msg})
}

// enqueue never blocks; a full queue drops m.
func (p *Publisher) enqueue(m message) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.queue <- m:
		p.mu.Lock()
		p.dropping = false
		p.mu.Unlock()
	default:
		n := p.dropped.Add(1)
		p.mu.Lock()
		first := !p.dropping
		p.dropping = true
		p.mu.Unlock()
		if first {
			log.Printf("mqtt queue full, dropping notifications topic=%s dropped=%d", m.topic, n)
		}
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case m := <-p.queue:
			p.handle(m)
		case <-p.stop:
			// Publish what is already queued; give up on the first failure.
			for {
				select {
				case m := <-p.queue:
					if !p.handle(m) {
						p.discard()
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) handle(m message) bool {
	if m.flushed != nil {
		close(m.flushed)
		return true
	}
	return p.publish(m.topic, m.body)
}

func (p *Publisher) discard() {
	for {
		select {
		case m := <-p.queue:
			if m.flushed != nil {
				close(m.flushed)
				continue
			}
			p.dropped.Add(1)
		default:
			return
		}
	}
}

func (p *Publisher) publish(topic string, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		p.setErr(fmt.Errorf("mqtt marshal %s: %w", topic, err))
		return false
	}
	token := p.c.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		p.setErr(fmt.Errorf("mqtt publish %s: timeout", topic))
		return false
	}
	if err := token.Error(); err != nil {
		p.setErr(fmt.Errorf("mqtt publish %s: %w", topic, err))
		return false
	}
	p.setErr(nil)
	return true
}

// Flush waits until every notification queued before the call has been
// handed to the broker or failed.
func (p *Publisher) Flush() {
	if p == nil {
		return
	}
	flushed := make(chan struct{})
	select {
	case p.queue <- message{flushed: flushed}:
	case <-p.done:
		return
	}
	select {
	case <-flushed:
	case <-p.done:
	}
}

// Dropped reports how many notifications were discarded because the queue
// was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) setErr(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.mu.Lock()
	changed := msg != p.lastErr
	p.lastErr = msg
	p.mu.Unlock()
	if changed && err != nil {
		log.Printf("%v", err)
	}
}

func (p *Publisher) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Close publishes what is still queued and disconnects.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
		if p.c != nil {
			p.c.Disconnect(250)
		}
	})
}
