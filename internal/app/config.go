package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// StaticDir, when set, is served at / so the same binary can host
	// the web client next to the relay.
	StaticDir string

	// WS gateway knobs.
	WSWriteTimeout    time.Duration
	WSReadIdleTimeout time.Duration
	WSSendQueue       int
	WSRateEvents      int
	WSRateWindow      time.Duration
	WSAllowedOrigins  []string
	WSDevInsecure     bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("LINKSHARE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("LINKSHARE_LOG_LEVEL", "info"),
		LogFormat: EnvString("LINKSHARE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("LINKSHARE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LINKSHARE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LINKSHARE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LINKSHARE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("LINKSHARE_HTTP_MAX_HEADER_BYTES", 1<<20),

		StaticDir: EnvString("LINKSHARE_STATIC_DIR", ""),

		WSWriteTimeout:    EnvDuration("LINKSHARE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdleTimeout: EnvDuration("LINKSHARE_WS_READ_IDLE_TIMEOUT", 5*time.Minute),
		WSSendQueue:       EnvInt("LINKSHARE_WS_SEND_QUEUE", 64),
		WSRateEvents:      EnvInt("LINKSHARE_WS_RATE_EVENTS", 120),
		WSRateWindow:      EnvDuration("LINKSHARE_WS_RATE_WINDOW", 10*time.Second),
		WSAllowedOrigins:  EnvCSV("LINKSHARE_WS_ALLOWED_ORIGINS", ""),
		WSDevInsecure:     EnvBool("LINKSHARE_WS_DEV_INSECURE", false),
	}
}
