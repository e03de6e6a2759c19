package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"xplane-position/internal/config"
	"xplane-position/internal/mqttpub"
	"xplane-position/internal/nmea"
	"xplane-position/internal/position"
	"xplane-position/internal/replay"
	"xplane-position/internal/tracklog"
	"xplane-position/internal/udp"
	"xplane-position/internal/web"
)

// runtime owns the provider and every sink attached to it.
type runtime struct {
	cfg     config.Config
	prov    *position.Provider
	hub     *web.Hub
	handler http.Handler

	recorder *replay.Writer
	nmeaOut  *udp.Broadcaster
	mqtt     *mqttpub.Publisher
	track    *tracklog.Store
}

func newRuntime(cfg config.Config, logs *web.LogBuffer) (*runtime, error) {
	r := &runtime{cfg: cfg}

	pcfg := position.Config{
		ListenAddr: cfg.Provider.Listen,
		ReadBuffer: cfg.Provider.ReadBuffer,
		QueueLen:   cfg.Provider.Queue,
		StaleAfter: cfg.Provider.StaleAfter,
	}
	if cfg.Replay.Enable {
		pcfg.Open = replay.Opener(cfg.Replay.Path, cfg.Replay.Speed, cfg.Replay.Loop)
	}
	if cfg.Record.Enable {
		w, err := replay.Create(cfg.Record.Path)
		if err != nil {
			return nil, fmt.Errorf("open record log: %w", err)
		}
		r.recorder = w
		pcfg.Recorder = w
		log.Printf("recording datagrams path=%s", cfg.Record.Path)
	}

	r.prov = position.New(pcfg)
	r.hub = web.NewHub(r.prov)
	r.handler = web.Handler(r.prov, r.hub, logs)
	if err := r.prov.AddListener(r.hub); err != nil {
		r.Close()
		return nil, err
	}

	if cfg.NMEA.Enable {
		b, err := udp.NewBroadcaster(cfg.NMEA.Dest)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("nmea output: %w", err)
		}
		r.nmeaOut = b
		if err := r.prov.AddListener(nmea.NewOutput(r.prov, b)); err != nil {
			r.Close()
			return nil, err
		}
		log.Printf("nmea output enabled dest=%s", cfg.NMEA.Dest)
	}

	if cfg.Track.Enable {
		s, err := tracklog.Open(cfg.Track.Path, r.sourceLabel(), r.prov)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.track = s
		if err := r.prov.AddListener(s); err != nil {
			r.Close()
			return nil, err
		}
	}

	if cfg.MQTT.Enable {
		p, err := mqttpub.Connect(mqttpub.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Retain:      cfg.MQTT.Retain,
			QueueLen:    cfg.MQTT.QueueLen,
		}, r.prov)
		if err != nil {
			// Keep running without MQTT.
			log.Printf("mqtt init failed: %v", err)
		} else {
			r.mqtt = p
			if err := r.prov.AddListener(p); err != nil {
				r.Close()
				return nil, err
			}
			log.Printf("mqtt enabled broker=%s prefix=%s", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
		}
	}

	return r, nil
}

func (r *runtime) sourceLabel() string {
	if r.cfg.Replay.Enable {
		return "replay://" + r.cfg.Replay.Path
	}
	return "udp://" + r.cfg.Provider.Listen
}

// Start initializes the provider. A source that cannot be opened leaves the
// provider in the error status; with the web UI enabled that is reported
// there instead of aborting.
func (r *runtime) Start(ctx context.Context) error {
	err := r.prov.Initialize(ctx)
	if err != nil && r.cfg.Web.Enable {
		log.Printf("provider unavailable, serving status only: %v", err)
		return nil
	}
	return err
}

func (r *runtime) Handler() http.Handler { return r.handler }

func (r *runtime) Close() {
	if r.prov != nil {
		r.prov.Close()
	}
	if r.mqtt != nil {
		r.mqtt.Close()
	}
	if r.track != nil {
		if err := r.track.Close(); err != nil {
			log.Printf("track log close failed: %v", err)
		}
	}
	if r.nmeaOut != nil {
		_ = r.nmeaOut.Close()
	}
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			log.Printf("record log close failed: %v", err)
		}
	}
}
