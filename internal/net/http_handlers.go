package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"net/http/pprof"

	"terrafort/server"
	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/net/ws"
	"terrafort/server/internal/observability"
)

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *log.Logger
	// MaxMessageBytes caps inbound websocket frames.
	MaxMessageBytes int64
	Observability   observability.Config
}

func NewHTTPHandler(engine *server.Engine, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

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
			Status string `json:"status"`
			server.Diagnostics
		}{
			Status:      "ok",
			Diagnostics: engine.DiagnosticsSnapshot(),
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, proto.Schema())
	})

	handler := ws.NewHandler(engine, ws.HandlerConfig{Logger: logger, MaxMessageBytes: cfg.MaxMessageBytes})
	mux.HandleFunc("/ws", handler.Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger *log.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
