package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkshare/internal/relay"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	reg *relay.Registry,
	ws *relay.Gateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "ready sessions=%d\n", reg.Len())
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/ws/new", ws.HandleWS)

	if cfg.StaticDir != "" {
		log.Info("static.enabled", "dir", cfg.StaticDir)
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}
}
