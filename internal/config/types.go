package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`

	// Feeds are polled sequentially in this order each cycle.
	Feeds []FeedConfig `json:"feeds"`

	Images   ImagesConfig   `json:"images"`
	HTTP     HTTPConfig     `json:"http"`
	State    StateConfig    `json:"state"`
	Notifier NotifierConfig `json:"notifier"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChannelID is the destination chat for transfer notifications.
	ChannelID int64 `json:"channel_id"`
	ThreadID  int   `json:"thread_id,omitempty"`
	// Timeout is a Go duration string for Bot API calls (e.g. "10s").
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat mirrors WARN+ log lines into an operator chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MonitorConfig controls the polling cycle.
//
// Interval accepts anything the scheduler accepts: "180s", "03:00", "@every 3m",
// or a cron expression.
type MonitorConfig struct {
	Interval   string `json:"interval"`
	RunOnStart *bool  `json:"run_on_start,omitempty"`
	Announce   *bool  `json:"announce,omitempty"`
	// Timezone used to render notification timestamps.
	Timezone string `json:"timezone"`
}

type FeedConfig struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Endpoint string `json:"endpoint"`
	// Accent is "#RRGGBB", "0xRRGGBB" or a named color (blurple, orange, green, red, blue, gold).
	Accent string `json:"accent"`
}

type ImagesConfig struct {
	// SiteURL hosts team pages (/team/<slug>) and /media/<id>.<ext>.
	SiteURL string `json:"site_url"`
	// APIURL hosts /public/media/<id>.<ext>.
	APIURL       string `json:"api_url"`
	ProbeTimeout string `json:"probe_timeout"`
	PageTimeout  string `json:"page_timeout"`
	CacheSize    int    `json:"cache_size"`
}

type HTTPConfig struct {
	FeedTimeout string `json:"feed_timeout"`
	UserAgent   string `json:"user_agent"`
}

// StateConfig selects the cursor backend.
//
// Example:
//
//	"state": { "driver": "file", "path": "./last_id.json" }
type StateConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisDB     int    `json:"redis_db,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout"`
	HistorySize int    `json:"history_size"`
}

// MetricsConfig controls the optional /metrics + /healthz HTTP server.
// Prefer binding to localhost.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}

// BoolOr dereferences an optional flag.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
