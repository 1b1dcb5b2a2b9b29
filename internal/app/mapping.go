package app

import (
	"fmt"
	"strings"
	"time"

	"transferbot/internal/config"
	"transferbot/internal/feed"
	"transferbot/internal/imagery"
	"transferbot/internal/notifier"
	"transferbot/internal/observability/metrics"
	"transferbot/internal/storage"
	kit "transferbot/internal/transport"
	logx "transferbot/pkg/logx"
)

const cycleTask = "transfers.cycle"

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    lc.Chat.Enabled,
			ChatID:     lc.Chat.ChatID,
			ThreadID:   lc.Chat.ThreadID,
			MinLevel:   lc.Chat.MinLevel,
			RatePerSec: lc.Chat.RatePerSec,
		},
	}
}

// StorageConfig maps the state section to a storage driver config.
func StorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.State
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("state.path is required when state.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("state.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "redis":
		return storage.Config{
			Driver:      driver,
			RedisAddr:   strings.TrimSpace(sc.RedisAddr),
			RedisDB:     sc.RedisDB,
			RedisPrefix: sc.RedisPrefix,
		}, nil
	default:
		return storage.Config{}, fmt.Errorf("%w: state.driver=%s", storage.ErrUnknownDriver, sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 15*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: timeout,
		HistorySize: cfg.Notifier.HistorySize,
	}, nil
}

func mapImagesConfig(cfg *config.Config) (imagery.Config, error) {
	probe, err := config.ParseDurationOrDefault("images.probe_timeout", cfg.Images.ProbeTimeout, 8*time.Second)
	if err != nil {
		return imagery.Config{}, err
	}
	page, err := config.ParseDurationOrDefault("images.page_timeout", cfg.Images.PageTimeout, 12*time.Second)
	if err != nil {
		return imagery.Config{}, err
	}
	return imagery.Config{
		SiteURL:      cfg.Images.SiteURL,
		APIURL:       cfg.Images.APIURL,
		ProbeTimeout: probe,
		PageTimeout:  page,
		CacheSize:    cfg.Images.CacheSize,
		UserAgent:    cfg.HTTP.UserAgent,
	}, nil
}

func mapMetricsConfig(cfg *config.Config) metrics.Config {
	return metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Token:   cfg.Metrics.Token,
		Pprof:   cfg.Metrics.Pprof,
	}
}

// FeedDescriptors resolves the configured feeds, accents included.
func FeedDescriptors(cfg *config.Config) ([]feed.Descriptor, error) {
	out := make([]feed.Descriptor, 0, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		accent, err := config.ParseColor(f.Accent)
		if err != nil {
			return nil, fmt.Errorf("feeds[%d].accent: %w", i, err)
		}
		label := strings.TrimSpace(f.Label)
		if label == "" {
			label = f.Key
		}
		out = append(out, feed.Descriptor{
			Key:      strings.TrimSpace(f.Key),
			Label:    label,
			Endpoint: strings.TrimSpace(f.Endpoint),
			Accent:   accent,
		})
	}
	return out, nil
}

func channelTarget(cfg *config.Config) kit.ChatTarget {
	return kit.ChatTarget{ChatID: cfg.Telegram.ChannelID, ThreadID: cfg.Telegram.ThreadID}
}
