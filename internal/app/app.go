// Package app wires the linkshare relay runtime: config, logging, HTTP
// routes, and the WebSocket pairing gateway.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"linkshare/internal/relay"
)

// App is the relay runtime: it owns HTTP server wiring and the gateway.
type App struct {
	cfg Config
	log Logger

	reg *relay.Registry
	ws  *relay.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) *App {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	reg := relay.NewRegistry(log)
	ws := relay.NewGateway(log, reg, relay.GatewayConfig{
		WriteTimeout:    cfg.WSWriteTimeout,
		ReadIdleTimeout: cfg.WSReadIdleTimeout,
		SendQueueSize:   cfg.WSSendQueue,
		RateEvents:      cfg.WSRateEvents,
		RateWindow:      cfg.WSRateWindow,
		OriginPatterns:  originPatterns(cfg.WSAllowedOrigins),
		DevInsecure:     cfg.WSDevInsecure,
	})

	relay.RegisterMetrics()

	return &App{cfg: cfg, log: log, reg: reg, ws: ws}
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.reg, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "url", runtimeBaseURL(a.cfg.HTTPAddr), "ws", wsBaseURL(runtimeBaseURL(a.cfg.HTTPAddr)))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a browsable URL, mapping
// wildcard binds to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// wsBaseURL converts an http(s) base URL into its ws(s) counterpart.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

// originPatterns extracts host patterns from configured origins for the
// websocket accept layer.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if host, _, err := net.SplitHostPort(o); err == nil {
			o = host
		}
		out = append(out, strings.ToLower(o))
	}
	return out
}
