package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newManager(path string, env map[string]string) *ConfigManager {
	m := NewConfigManager(path)
	m.getenv = func(k string) string { return env[k] }
	return m
}

func TestParseMissingFileUsesEnvAndDefaults(t *testing.T) {
	m := newManager(filepath.Join(t.TempDir(), "absent.json"), map[string]string{
		EnvToken:     "123:abc",
		EnvChannelID: "-1001234",
		EnvStateFile: "/var/lib/transferbot/last_id.json",
	})
	cfg, err := m.Parse()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.EqualValues(t, -1001234, cfg.Telegram.ChannelID)
	assert.Equal(t, "/var/lib/transferbot/last_id.json", cfg.State.Path)
	assert.Equal(t, DefaultInterval, cfg.Monitor.Interval)
	assert.Equal(t, DefaultTimezone, cfg.Monitor.Timezone)
	require.Len(t, cfg.Feeds, 2)
	assert.Equal(t, "Holland", cfg.Feeds[0].Key)
	assert.Equal(t, "Holland-5v5-next", cfg.Feeds[1].Key)
	assert.NoError(t, Validate(cfg))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"telegram":{"token":"x","channel_id":1},"bogus":true}`)
	_, err := newManager(p, nil).Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParseRejectsTrailingData(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"telegram":{"token":"x"}} {}`)
	_, err := newManager(p, nil).Parse()
	require.Error(t, err)
}

func TestParseYAMLAndTOML(t *testing.T) {
	yml := writeFile(t, "cfg.yaml", `
telegram:
  token: "t"
  channel_id: 42
feeds:
  - key: one
    endpoint: https://example.com/one
    accent: "#112233"
`)
	cfg, err := newManager(yml, nil).Parse()
	require.NoError(t, err)
	assert.EqualValues(t, 42, cfg.Telegram.ChannelID)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "one", cfg.Feeds[0].Label)
	require.NoError(t, Validate(cfg))

	tml := writeFile(t, "cfg.toml", `
[telegram]
token = "t"
channel_id = 7

[state]
driver = "sqlite"
path = "state.db"
`)
	cfg, err = newManager(tml, nil).Parse()
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.Telegram.ChannelID)
	assert.Equal(t, "sqlite", cfg.State.Driver)
	assert.Equal(t, "state.db", cfg.State.Path)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"telegram":{"token":"file","channel_id":1}}`)
	cfg, err := newManager(p, map[string]string{EnvToken: "env"}).Parse()
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.Telegram.Token)
	assert.EqualValues(t, 1, cfg.Telegram.ChannelID)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{Telegram: TelegramConfig{Token: "t", ChannelID: 1}}
		ApplyDefaults(c)
		return c
	}

	c := base()
	c.Telegram.Token = ""
	assert.ErrorIs(t, Validate(c), ErrMissingToken)

	c = base()
	c.Telegram.ChannelID = 0
	assert.ErrorIs(t, Validate(c), ErrMissingChannel)

	c = base()
	c.Feeds = append(c.Feeds, c.Feeds[0])
	assert.ErrorContains(t, Validate(c), "duplicated")

	c = base()
	c.Feeds[0].Endpoint = "/relative"
	assert.ErrorContains(t, Validate(c), "feeds[0].endpoint")

	c = base()
	c.Monitor.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, Validate(c), "monitor.timezone")

	c = base()
	c.State.Driver = "redis"
	assert.ErrorContains(t, Validate(c), "redis_addr")

	c = base()
	c.Images.ProbeTimeout = "soon"
	assert.Error(t, Validate(c))

	assert.NoError(t, Validate(base()))
}

func TestParseColor(t *testing.T) {
	cases := map[string]int{
		"blurple":  0x5865F2,
		"Orange":   0xE67E22,
		"#2ecc71":  0x2ECC71,
		"0x0000ff": 0x0000FF,
		"abcdef":   0xABCDEF,
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "#12", "zzzzzz", "teal"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestWatchPublishesChangedConfig(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"telegram":{"token":"a","channel_id":1}}`)
	m := newManager(p, nil)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte(`{"telegram":{"token":"b","channel_id":1}}`), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "b", cfg.Telegram.Token)
		assert.Equal(t, "b", m.Get().Telegram.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("config update not published")
	}
}

func TestWatchRejectsInvalidConfig(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"telegram":{"token":"a","channel_id":1}}`)
	m := newManager(p, nil)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(_ context.Context, cfg *Config) error { return ValidateRuntime(cfg) })

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	require.NoError(t, os.WriteFile(p, []byte(`{"telegram":{"token":"a","channel_id":1},"monitor":{"timezone":"Nowhere/Else"}}`), 0o600))
	m.reload(context.Background())

	select {
	case <-ch:
		t.Fatal("invalid config must not be published")
	default:
	}
	assert.Equal(t, DefaultTimezone, m.Get().Monitor.Timezone)
}
