package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"linkshare/internal/client"
	"linkshare/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sharectl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	relayURL := flag.String("relay", "", "relay websocket URL (overrides config)")
	pair := flag.String("pair", "", "pair immediately with a share code or link")
	flag.Parse()

	cfg := defaultClientConfig()
	if *configPath != "" {
		loaded, err := loadClientConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *relayURL != "" {
		cfg.RelayURL = *relayURL
	}

	initialLink := *pair
	if initialLink == "" && flag.NArg() > 0 {
		initialLink = flag.Arg(0)
	}

	log, closeLog, err := newFileLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	mgr := client.NewManager(client.ManagerConfig{
		URL:         cfg.RelayURL,
		RetryDelay:  cfg.RetryDelay,
		DialTimeout: cfg.DialTimeout,
	}, log, client.WebsocketDialer{})

	handle := &programHandle{}
	sess := client.NewSession(client.SessionConfig{
		ShareBaseURL: cfg.ShareBaseURL,
		InitialLink:  initialLink,
	}, log, mgr, tui.NewRenderer(handle))

	prog := tea.NewProgram(tui.NewModel(sess, cfg.Highlight), tea.WithAltScreen())
	handle.set(prog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sess.Run(ctx)

	// Dial failures here are retried by the manager itself.
	if err := mgr.Connect(ctx); err != nil {
		log.Warn("conn.initial.fail", "err", err)
	}

	_, err = prog.Run()
	cancel()
	mgr.Disconnect()
	return err
}

// programHandle breaks the construction cycle between the session (which
// needs a renderer) and the program (which needs the session). It must be
// set before the session starts running.
type programHandle struct {
	mu   sync.Mutex
	prog *tea.Program
}

func (h *programHandle) set(p *tea.Program) {
	h.mu.Lock()
	h.prog = p
	h.mu.Unlock()
}

func (h *programHandle) Send(msg tea.Msg) {
	h.mu.Lock()
	p := h.prog
	h.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// newFileLogger logs to the configured file, or swallows everything when
// none is set: stdout belongs to the UI.
func newFileLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return log, func() { _ = f.Close() }, nil
}
