package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	DefaultInterval     = "180s"
	DefaultTimezone     = "Europe/Amsterdam"
	DefaultStateFile    = "last_id.json"
	DefaultSiteURL      = "https://virtualprogaming.com"
	DefaultAPIURL       = "https://api.virtualprogaming.com"
	DefaultFeedTimeout  = "12s"
	DefaultPageTimeout  = "12s"
	DefaultProbeTimeout = "8s"
	DefaultCacheSize    = 4096
	DefaultMetricsAddr  = "127.0.0.1:9464"
)

// Environment overrides, applied after the file is decoded.
const (
	EnvToken     = "TRANSFERBOT_TOKEN"
	EnvChannelID = "TRANSFERBOT_CHANNEL_ID"
	EnvStateFile = "TRANSFERBOT_STATE_FILE"
)

// DefaultFeeds are the two community feeds the bot was built for.
func DefaultFeeds() []FeedConfig {
	return []FeedConfig{
		{
			Key:      "Holland",
			Label:    "Holland",
			Endpoint: "https://api.virtualprogaming.com/public/communities/Holland/movement/?limit=12&offset=0",
			Accent:   "blurple",
		},
		{
			Key:      "Holland-5v5-next",
			Label:    "Holland 5v5 Next",
			Endpoint: "https://api.virtualprogaming.com/public/communities/Holland-5v5-next/movement/?limit=12&offset=0",
			Accent:   "orange",
		},
	}
}

// ApplyDefaults fills zero values in place.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Monitor.Interval) == "" {
		cfg.Monitor.Interval = DefaultInterval
	}
	if strings.TrimSpace(cfg.Monitor.Timezone) == "" {
		cfg.Monitor.Timezone = DefaultTimezone
	}
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultFeeds()
	}
	for i := range cfg.Feeds {
		if strings.TrimSpace(cfg.Feeds[i].Label) == "" {
			cfg.Feeds[i].Label = cfg.Feeds[i].Key
		}
		if strings.TrimSpace(cfg.Feeds[i].Accent) == "" {
			cfg.Feeds[i].Accent = "blurple"
		}
	}
	if cfg.Images.SiteURL == "" {
		cfg.Images.SiteURL = DefaultSiteURL
	}
	if cfg.Images.APIURL == "" {
		cfg.Images.APIURL = DefaultAPIURL
	}
	if cfg.Images.ProbeTimeout == "" {
		cfg.Images.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Images.PageTimeout == "" {
		cfg.Images.PageTimeout = DefaultPageTimeout
	}
	if cfg.Images.CacheSize <= 0 {
		cfg.Images.CacheSize = DefaultCacheSize
	}
	if cfg.HTTP.FeedTimeout == "" {
		cfg.HTTP.FeedTimeout = DefaultFeedTimeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "transferbot/1.0"
	}
	if cfg.State.Driver == "" {
		cfg.State.Driver = "file"
	}
	if cfg.State.Path == "" && cfg.State.Driver != "redis" {
		cfg.State.Path = DefaultStateFile
	}
	if cfg.State.RedisPrefix == "" {
		cfg.State.RedisPrefix = "transferbot"
	}
	if cfg.Notifier.RatePerSec <= 0 {
		cfg.Notifier.RatePerSec = 1
	}
	if cfg.Notifier.SendTimeout == "" {
		cfg.Notifier.SendTimeout = "15s"
	}
	if cfg.Notifier.HistorySize <= 0 {
		cfg.Notifier.HistorySize = 100
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
}

// ApplyEnv lets deployments keep secrets out of the config file.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvChannelID)); v != "" {
		// An unparsable id is left for Validate to reject as missing.
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChannelID = id
		}
	}
	if v := strings.TrimSpace(getenv(EnvStateFile)); v != "" {
		cfg.State.Path = v
	}
}
