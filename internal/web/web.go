// Package web serves GPSDO snapshots as JSON.
package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/common/log"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

const notReadyBody = "Service Unavailable - data not ready yet"

// Source supplies the latest snapshot.
type Source interface {
	Latest() (gpsdo.Snapshot, bool)
}

type configResponse struct {
	gpsdo.Config
	gpsdo.Frequencies
	LevelMilliamps int `json:"level_ma"`
}

type lockResponse struct {
	SerialNumber string `json:"serial_number"`
	gpsdo.Status
}

// Handler returns the router for the status endpoints. If metrics is not nil
// it is mounted at metricsPath.
func Handler(src Source, title, metricsPath string, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)

	r.Get("/", landingPage(title, metricsPath))

	r.Get("/status", snapshotHandler(src, func(s gpsdo.Snapshot) interface{} {
		return s
	}))
	r.Get("/config", snapshotHandler(src, func(s gpsdo.Snapshot) interface{} {
		return configResponse{
			Config:         s.Config,
			Frequencies:    s.Frequencies,
			LevelMilliamps: s.Config.LevelMilliamps(),
		}
	}))
	r.Get("/lock", snapshotHandler(src, func(s gpsdo.Snapshot) interface{} {
		return lockResponse{SerialNumber: s.SerialNumber, Status: s.Status}
	}))

	if metrics != nil {
		r.Handle(metricsPath, metrics)
	}

	return r
}

func snapshotHandler(src Source, view func(gpsdo.Snapshot) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ready := src.Latest()
		if !ready {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, notReadyBody)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view(s)); err != nil {
			log.Errorln("Encoding response failed:", err)
		}
	}
}

func landingPage(title, metricsPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html>
             <head><title>` + title + `</title></head>
             <body>
             <h1>` + title + `</h1>
             <p><a href='` + metricsPath + `'>Metrics</a></p>
             <p><a href='/status'>Status</a> <a href='/config'>Config</a> <a href='/lock'>Lock</a></p>
             </body>
             </html>`))
	}
}
