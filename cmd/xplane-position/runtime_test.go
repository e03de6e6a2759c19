package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"xplane-position/internal/config"
	"xplane-position/internal/position"
	"xplane-position/internal/replay"
	"xplane-position/internal/tracklog"
	"xplane-position/internal/web"
	"xplane-position/internal/xplane"
)

func writeFlightLog(t *testing.T, path string) {
	t.Helper()
	w, err := replay.Create(path)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t0 := time.Now()
	_ = w.WriteFrame(t0, xplane.Encode(xplane.PositionEntry(47.5, 8.5, 1000)))
	_ = w.WriteFrame(t0.Add(time.Millisecond), xplane.Encode(xplane.HeadingEntry(90)))
	_ = w.WriteFrame(t0.Add(2*time.Millisecond), xplane.Encode(xplane.PositionEntry(47.25, 8.5, 1000)))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Provider: config.ProviderConfig{Listen: "127.0.0.1:0", Queue: 8, StaleAfter: 5 * time.Second},
		Web:      config.WebConfig{Enable: true, Listen: "127.0.0.1:0"},
	}
}

func TestRuntime_ReplayIntoWebAndTrack(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "flight.log")
	trackPath := filepath.Join(dir, "track.db")
	writeFlightLog(t, logPath)

	cfg := baseConfig(t)
	cfg.Replay = config.ReplayConfig{Enable: true, Path: logPath, Speed: 10}
	cfg.Track = config.TrackConfig{Enable: true, Path: trackPath}

	rt, err := newRuntime(cfg, web.NewLogBuffer(10))
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		rt.Close()
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rt.prov.Position().LatDeg != 47.25 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ts := httptest.NewServer(rt.Handler())
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var got web.StatusResponse
	err = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	ts.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Provider.Status != position.StatusAvailable || got.Provider.Position.LatDeg != 47.25 {
		t.Fatalf("provider=%+v", got.Provider)
	}
	if got.Provider.Datagrams != 3 {
		t.Fatalf("datagrams=%d want 3", got.Provider.Datagrams)
	}

	session := rt.track.Session()
	rt.Close()

	store, err := tracklog.Open(trackPath, "check", nil)
	if err != nil {
		t.Fatalf("tracklog.Open() error: %v", err)
	}
	defer store.Close()
	fixes, err := store.Fixes(session)
	if err != nil {
		t.Fatalf("Fixes() error: %v", err)
	}
	if len(fixes) != 2 {
		t.Fatalf("fixes=%d want 2", len(fixes))
	}
}

func TestRuntime_RecordsDatagrams(t *testing.T) {
	recPath := filepath.Join(t.TempDir(), "rec.log")
	cfg := baseConfig(t)
	cfg.Record = config.RecordConfig{Enable: true, Path: recPath}

	rt, err := newRuntime(cfg, nil)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	d := xplane.Encode(xplane.PositionEntry(1, 2, 3))
	_ = rt.prov.Process(d)
	_ = rt.prov.Process([]byte("JUNK!"))
	rt.Close()

	frames, err := replay.LoadFile(recPath)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames=%d want 2", len(frames))
	}
	if string(frames[0].Data) != string(d) || string(frames[1].Data) != "JUNK!" {
		t.Fatalf("frames=%x", frames)
	}
}

func TestRuntime_StartFailureKeepsWebUp(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Replay = config.ReplayConfig{Enable: true, Path: filepath.Join(t.TempDir(), "missing.log"), Speed: 1}

	rt, err := newRuntime(cfg, nil)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if rt.prov.Status() != position.StatusError || rt.prov.Error() == "" {
		t.Fatalf("status=%v error=%q want error status", rt.prov.Status(), rt.prov.Error())
	}

	cfg.Web.Enable = false
	rt2, err := newRuntime(cfg, nil)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt2.Close()
	if err := rt2.Start(context.Background()); err == nil {
		t.Fatalf("expected start error without web")
	}
}

func TestRuntime_NMEAOutputValidatesDest(t *testing.T) {
	cfg := baseConfig(t)
	cfg.NMEA = config.NMEAConfig{Enable: true, Dest: "not-an-address"}
	if _, err := newRuntime(cfg, nil); err == nil {
		t.Fatalf("expected nmea dest error")
	}
}
