package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"xplane-position/internal/metrics"
	"xplane-position/internal/position"
)

// ProviderView is the read-only side of the position provider.
type ProviderView interface {
	Snapshot(now time.Time) position.Snapshot
	Info() position.Info
}

type StatusResponse struct {
	Service   string            `json:"service"`
	NowUTC    string            `json:"now_utc"`
	UptimeSec int64             `json:"uptime_sec"`
	WSClients int               `json:"ws_clients"`
	Provider  position.Snapshot `json:"provider"`
}

type ProviderResponse struct {
	position.Info

	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
	BuildTime  string `json:"build_time,omitempty"`
}

func Handler(prov ProviderView, hub *Hub, logs *LogBuffer) http.Handler {
	started := time.Now().UTC()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		now := time.Now().UTC()
		resp := StatusResponse{
			Service:   "xplane-position",
			NowUTC:    now.Format(time.RFC3339Nano),
			UptimeSec: int64(now.Sub(started).Seconds()),
			Provider:  prov.Snapshot(now),
		}
		if hub != nil {
			resp.WSClients = hub.Clients()
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/provider", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, providerResponse(prov.Info()))
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if hub != nil {
		mux.Handle("/ws", hub)
	}
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := prov.Snapshot(time.Now().UTC())
		info := prov.Info()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>", html.EscapeString(info.GUIString))
		_, _ = fmt.Fprintf(w, "<h1>%s</h1><p>%s</p>", html.EscapeString(info.Name), html.EscapeString(info.Description))
		_, _ = fmt.Fprintf(w, "<pre>status=%s\nlat=%.6f lon=%.6f alt_m=%.1f\nspeed_mps=%.1f direction_deg=%.1f\ndatagrams=%d dropped=%d</pre>",
			snap.Status, snap.Position.LatDeg, snap.Position.LonDeg, snap.Position.AltM,
			snap.SpeedMPS, snap.Direction, snap.Datagrams, snap.DroppedFrames,
		)
		_, _ = fmt.Fprintf(w, "<p>Live feed: <code>/ws</code>. JSON: <a href=\"/api/status\">/api/status</a>.</p></body></html>")
	})

	return metrics.Middleware(mux)
}

func providerResponse(info position.Info) ProviderResponse {
	resp := ProviderResponse{Info: info, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		resp.ModulePath = bi.Main.Path
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				resp.Commit = s.Value
			case "vcs.modified":
				resp.Dirty = s.Value == "true"
			case "vcs.time":
				resp.BuildTime = s.Value
			}
		}
	}
	return resp
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
