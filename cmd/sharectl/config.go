package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// clientConfig is everything sharectl needs to reach a relay.
type clientConfig struct {
	RelayURL     string
	ShareBaseURL string
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	Highlight    string
	LogFile      string
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		RelayURL:     "ws://127.0.0.1:8080/ws/new",
		ShareBaseURL: "http://127.0.0.1:8080/",
		RetryDelay:   time.Second,
		DialTimeout:  10 * time.Second,
		Highlight:    "monokai",
	}
}

type fileConfig struct {
	RelayURL     string `toml:"relay_url"`
	ShareBaseURL string `toml:"share_base_url"`
	RetryDelay   string `toml:"retry_delay"`
	DialTimeout  string `toml:"dial_timeout"`
	Highlight    string `toml:"highlight"`
	LogFile      string `toml:"log_file"`
}

// loadClientConfig overlays a TOML file onto the defaults. Only keys
// present in the file override anything.
func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load sharectl config: %w", err)
	}

	if meta.IsDefined("relay_url") {
		if v := strings.TrimSpace(raw.RelayURL); v != "" {
			cfg.RelayURL = v
		}
	}

	if meta.IsDefined("share_base_url") {
		if v := strings.TrimSpace(raw.ShareBaseURL); v != "" {
			cfg.ShareBaseURL = v
		}
	}

	if meta.IsDefined("retry_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RetryDelay))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse retry_delay: %w", err)
		}
		cfg.RetryDelay = d
	}

	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}

	if meta.IsDefined("highlight") {
		cfg.Highlight = strings.TrimSpace(raw.Highlight)
	}

	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	return cfg, nil
}
