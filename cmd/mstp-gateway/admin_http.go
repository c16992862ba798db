package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/gocomm/mstp-gateway/internal/metrics"
	"github.com/gocomm/mstp-gateway/internal/mstp"
	"github.com/gocomm/mstp-gateway/internal/tap"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// tapStreamBuf is the per-connection observer buffer for /taps; a slow SSE
// client drops frames under the tap's backpressure policy rather than
// blocking the broadcaster.
const tapStreamBuf = 64

// newAdminRouter wires the admin HTTP surface: a JSON status snapshot of
// the master, a live frame stream, the Prometheus exposition, and a
// readiness probe, all on one listener.
func newAdminRouter(m *mstp.Master, tp *tap.Tap) *mux.Router {
	log := logging.WithComponent("admin")
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Snapshot()); err != nil {
			log.Error("status_encode_error", "error", err)
		}
	}).Methods(http.MethodGet)
	r.HandleFunc("/taps", func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		obs := &tap.Observer{Out: make(chan mstp.Frame, tapStreamBuf), Closed: make(chan struct{})}
		tp.Add(obs)
		defer tp.Remove(obs)

		ctx := req.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-obs.Closed:
				return
			case fr, ok := <-obs.Out:
				if !ok {
					return
				}
				b, err := json.Marshal(fr)
				if err != nil {
					log.Warn("tap_encode_error", "error", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		if metrics.IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	}).Methods(http.MethodGet)
	return r
}

// startAdminHTTP serves the admin router at addr; a blank addr disables it.
func startAdminHTTP(addr string, m *mstp.Master, tp *tap.Tap) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: newAdminRouter(m, tp)}
	log := logging.WithComponent("admin")
	go func() {
		log.Info("admin_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin_http_error", "error", err)
		}
	}()
	return srv
}
