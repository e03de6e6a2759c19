// Package nmea renders the provider state as NMEA 0183 sentences so that
// moving-map apps that only speak NMEA can follow the simulator.
package nmea

import (
	"fmt"
	"math"
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"xplane-position/internal/position"
	"xplane-position/internal/xplane"
)

const talker = "GP"

// RMC builds a recommended-minimum sentence. Course is the simulator's
// magnetic heading; X-Plane's DATA sets used here carry no true track.
func RMC(st position.State) string {
	validity := "V"
	if st.Status == position.StatusAvailable {
		validity = "A"
	}
	ts := st.Timestamp.UTC()
	lat, ns := formatLat(st.Position.LatDeg)
	lon, ew := formatLon(st.Position.LonDeg)
	fields := []string{
		talker + "RMC",
		formatTime(ts),
		validity,
		lat, ns,
		lon, ew,
		fmt.Sprintf("%.1f", mpsToKnots(st.SpeedMPS)),
		fmt.Sprintf("%.1f", normalizeDeg(st.Direction)),
		formatDate(ts),
		"", "",
	}
	return sentence(fields)
}

// GGA builds a fix-data sentence with altitude in meters.
func GGA(st position.State) string {
	quality := "0"
	sats := "00"
	if st.Status == position.StatusAvailable {
		quality = gonmea.GPS
		sats = "12"
	}
	lat, ns := formatLat(st.Position.LatDeg)
	lon, ew := formatLon(st.Position.LonDeg)
	fields := []string{
		talker + "GGA",
		formatTime(st.Timestamp.UTC()),
		lat, ns,
		lon, ew,
		quality,
		sats,
		"1.0",
		fmt.Sprintf("%.1f", st.Position.AltM), "M",
		"0.0", "M",
		"", "",
	}
	return sentence(fields)
}

func sentence(fields []string) string {
	body := strings.Join(fields, ",")
	return "$" + body + "*" + gonmea.Checksum(body)
}

func mpsToKnots(mps float64) float64 {
	return mps / xplane.KnotsToMPS(1)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("150405.00")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("020106")
}

func formatLat(deg float64) (string, string) {
	hemi := "N"
	if deg < 0 {
		hemi = "S"
	}
	return degMin(math.Abs(deg), 2), hemi
}

func formatLon(deg float64) (string, string) {
	hemi := "E"
	if deg < 0 {
		hemi = "W"
	}
	return degMin(math.Abs(deg), 3), hemi
}

// degMin formats as (d)ddmm.mmmm.
func degMin(abs float64, degDigits int) string {
	d := math.Floor(abs)
	m := math.Round((abs-d)*60*1e4) / 1e4
	if m >= 60 {
		d++
		m -= 60
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(d), m)
}
