package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transferbot/internal/config"
	"transferbot/internal/storage"
)

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestStorageConfig(t *testing.T) {
	cfg := defaultConfig()
	sc, err := StorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, storage.Config{Driver: "file", Path: config.DefaultStateFile}, sc)

	cfg.State = config.StateConfig{Driver: "SQLite", Path: "state.db", BusyTimeout: "3s"}
	sc, err = StorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 3*time.Second, sc.BusyTimeout)

	cfg.State = config.StateConfig{Driver: "sqlite"}
	_, err = StorageConfig(cfg)
	assert.Error(t, err)

	cfg.State = config.StateConfig{Driver: "redis", RedisAddr: " 127.0.0.1:6379 ", RedisDB: 2, RedisPrefix: "tb"}
	sc, err = StorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, storage.Config{Driver: "redis", RedisAddr: "127.0.0.1:6379", RedisDB: 2, RedisPrefix: "tb"}, sc)

	cfg.State = config.StateConfig{Driver: "etcd"}
	_, err = StorageConfig(cfg)
	assert.ErrorIs(t, err, storage.ErrUnknownDriver)
}

func TestFeedDescriptors(t *testing.T) {
	cfg := defaultConfig()
	feeds, err := FeedDescriptors(cfg)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "Holland", feeds[0].Key)
	assert.Equal(t, "Holland 5v5 Next", feeds[1].Label)
	assert.NotZero(t, feeds[0].Accent)
	assert.NotEqual(t, feeds[0].Accent, feeds[1].Accent)

	cfg.Feeds = []config.FeedConfig{{Key: "x", Endpoint: "https://example.com/x", Accent: "#00ff00"}}
	feeds, err = FeedDescriptors(cfg)
	require.NoError(t, err)
	assert.Equal(t, "x", feeds[0].Label)
	assert.Equal(t, 0x00FF00, feeds[0].Accent)

	cfg.Feeds[0].Accent = "not-a-color"
	_, err = FeedDescriptors(cfg)
	assert.Error(t, err)
}

func TestMapNotifierAndImages(t *testing.T) {
	cfg := defaultConfig()
	nc, err := mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, nc.SendTimeout)
	assert.Equal(t, 1, nc.RatePerSec)

	cfg.Notifier.SendTimeout = "soon"
	_, err = mapNotifierConfig(cfg)
	assert.Error(t, err)

	ic, err := mapImagesConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, ic.ProbeTimeout)
	assert.Equal(t, 12*time.Second, ic.PageTimeout)
	assert.Equal(t, config.DefaultSiteURL, ic.SiteURL)
	assert.Equal(t, cfg.HTTP.UserAgent, ic.UserAgent)
}

func TestMapLoggingAndTarget(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telegram.ChannelID = -1001
	cfg.Telegram.ThreadID = 7
	cfg.Logging.Chat = config.LoggingChat{Enabled: true, ChatID: 42, MinLevel: "error", RatePerSec: 2}

	lc := mapLoggingConfig(cfg)
	assert.Equal(t, "info", lc.Level)
	assert.True(t, lc.Chat.Enabled)
	assert.EqualValues(t, 42, lc.Chat.ChatID)
	assert.Equal(t, "error", lc.Chat.MinLevel)

	target := channelTarget(cfg)
	assert.EqualValues(t, -1001, target.ChatID)
	assert.Equal(t, 7, target.ThreadID)

	mc := mapMetricsConfig(cfg)
	assert.False(t, mc.Enabled)
	assert.Equal(t, config.DefaultMetricsAddr, mc.Addr)
}
