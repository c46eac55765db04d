package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"toutuo/server/internal/net/ws"
	"toutuo/server/internal/observability"
	"toutuo/server/internal/telemetry"
	"toutuo/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Metrics       *logging.Metrics
	Router        *logging.Router
	TickRate      int
	WorldID       string
	Observability observability.Config
}

// NewHTTPHandler serves the feed websocket and the operational endpoints.
func NewHTTPHandler(hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			World      string               `json:"world,omitempty"`
			Tick       uint64               `json:"tick"`
			TickRate   int                  `json:"tickRate"`
			Sessions   int                  `json:"sessions"`
			Telemetry  map[string]uint64    `json:"telemetry"`
			Logging    *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			World:      cfg.WorldID,
			Tick:       hub.Tick(),
			TickRate:   cfg.TickRate,
			Sessions:   hub.SessionCount(),
			Telemetry:  cfg.Metrics.Snapshot(),
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &stats
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	handler := ws.NewHandler(hub, ws.HandlerConfig{Logger: cfg.Logger, TickSpeed: cfg.TickRate})
	mux.HandleFunc("/ws", handler.Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
