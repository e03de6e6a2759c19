// Command xplane-sim sends X-Plane DATA datagrams for an aircraft circling a
// fixed point, for exercising xplane-position without a simulator.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"xplane-position/internal/config"
	"xplane-position/internal/sim"
	"xplane-position/internal/udp"
)

func main() {
	var (
		configPath string
		dest       string
	)
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.StringVar(&dest, "dest", "", "Override sim.dest")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if dest != "" {
		cfg.Sim.Dest = dest
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out, err := udp.NewBroadcaster(cfg.Sim.Dest)
	if err != nil {
		log.Fatalf("udp sender init failed: %v", err)
	}
	defer out.Close()

	flight := sim.Flight{
		CenterLatDeg: cfg.Sim.CenterLatDeg,
		CenterLonDeg: cfg.Sim.CenterLonDeg,
		AltFeet:      cfg.Sim.AltFeet,
		GroundKt:     cfg.Sim.GroundKt,
		RadiusNm:     cfg.Sim.RadiusNm,
		Period:       cfg.Sim.Period,
	}
	log.Printf("xplane-sim sending dest=%s interval=%s center=%.5f,%.5f", cfg.Sim.Dest, cfg.Sim.Interval, flight.CenterLatDeg, flight.CenterLonDeg)

	var lastErr string
	err = sim.Run(ctx, flight, cfg.Sim.Interval, out.Send, func(err error) {
		if msg := err.Error(); msg != lastErr {
			log.Printf("xplane-sim send failed: %v", err)
			lastErr = msg
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("xplane-sim stopped: %v", err)
	}
	log.Printf("xplane-sim stopping")
}
