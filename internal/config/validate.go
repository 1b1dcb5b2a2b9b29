package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrMissingToken   = errors.New("telegram.token is required (or set " + EnvToken + ")")
	ErrMissingChannel = errors.New("telegram.channel_id must be a non-zero chat id (or set " + EnvChannelID + ")")
	ErrNoFeeds        = errors.New("at least one feed is required")
)

// Validate checks everything that must hold before the bot may start.
// It assumes ApplyDefaults already ran.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return ErrMissingToken
	}
	if cfg.Telegram.ChannelID == 0 {
		return ErrMissingChannel
	}
	return ValidateRuntime(cfg)
}

// ValidateRuntime checks the parts that can change on hot reload.
// Credentials are not required here so offline subcommands can use it.
func ValidateRuntime(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return ErrNoFeeds
	}
	seen := map[string]bool{}
	for i, f := range cfg.Feeds {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return fmt.Errorf("feeds[%d].key is required", i)
		}
		if seen[key] {
			return fmt.Errorf("feeds[%d].key %q is duplicated", i, key)
		}
		seen[key] = true
		if err := validateAbsURL(fmt.Sprintf("feeds[%d].endpoint", i), f.Endpoint); err != nil {
			return err
		}
		if _, err := ParseColor(f.Accent); err != nil {
			return fmt.Errorf("feeds[%d].accent: %w", i, err)
		}
	}

	if err := validateAbsURL("images.site_url", cfg.Images.SiteURL); err != nil {
		return err
	}
	if err := validateAbsURL("images.api_url", cfg.Images.APIURL); err != nil {
		return err
	}

	durations := map[string]string{
		"telegram.timeout":      cfg.Telegram.Timeout,
		"images.probe_timeout":  cfg.Images.ProbeTimeout,
		"images.page_timeout":   cfg.Images.PageTimeout,
		"http.feed_timeout":     cfg.HTTP.FeedTimeout,
		"state.busy_timeout":    cfg.State.BusyTimeout,
		"notifier.send_timeout": cfg.Notifier.SendTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if tz := strings.TrimSpace(cfg.Monitor.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("monitor.timezone: invalid %q: %w", tz, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.State.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	case "redis":
		if strings.TrimSpace(cfg.State.RedisAddr) == "" {
			return errors.New("state.redis_addr is required for redis driver")
		}
	default:
		return fmt.Errorf("state.driver: unknown driver %q", cfg.State.Driver)
	}
	return nil
}

func validateAbsURL(path, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s: absolute http(s) url required, got %q", path, raw)
	}
	return nil
}
