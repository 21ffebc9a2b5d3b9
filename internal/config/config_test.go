package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoad_DefaultsKept(t *testing.T) {
	const content = `signaling:
  url: wss://signal.example.com/ws
  channel_id: "42"
reconnect:
  base_delay: 500ms
bitrate:
  max_kbps: 4000
`
	cfg, err := Load(writeConfigFile(t, content))
	require.NoError(t, err)

	require.Equal(t, "wss://signal.example.com/ws", cfg.Signaling.URL)
	require.Equal(t, "42", cfg.Signaling.ChannelID)
	require.Equal(t, 500*time.Millisecond, cfg.Reconnect.BaseDelay)
	require.Equal(t, 4000, cfg.Bitrate.MaxKbps)

	// untouched keys keep their defaults
	require.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 100.0, cfg.Bitrate.LossSmoothing)
	require.Equal(t, time.Second, cfg.Bitrate.StatsInterval)
	require.True(t, cfg.DataChannel.Enabled)
	require.Len(t, cfg.ICEServers, 1)
}

func TestLoad_ICEServersFromFile(t *testing.T) {
	const content = `ice_servers:
  - urls: ["turn:turn.example.com:3478?transport=udp"]
    username: user
    credential: pass
`
	cfg, err := Load(writeConfigFile(t, content))
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 1)

	servers := cfg.WebRTCICEServers()
	require.Len(t, servers, 1)
	require.Equal(t, "user", servers[0].Username)
	require.Equal(t, "pass", servers[0].Credential)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STREAMCLIENT_SIGNALING_CHANNEL_ID", "from-env")
	t.Setenv("STREAMCLIENT_RECONNECT_MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Signaling.ChannelID)
	require.Equal(t, 7, cfg.Reconnect.MaxAttempts)
}

func TestLoad_BaseDelayLiftsMaxDelay(t *testing.T) {
	const content = `reconnect:
  base_delay: 90s
`
	cfg, err := Load(writeConfigFile(t, content))
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Reconnect.BaseDelay)
	require.Equal(t, 90*time.Second, cfg.Reconnect.MaxDelay)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"min above max", func(c *Config) { c.Bitrate.MinKbps = 5000 }, false},
		{"zero smoothing", func(c *Config) { c.Bitrate.LossSmoothing = 0 }, false},
		{"inverted thresholds", func(c *Config) { c.Bitrate.IncreaseThreshold = 0.2 }, false},
		{"zero base delay", func(c *Config) { c.Reconnect.BaseDelay = 0 }, false},
		{"max delay below base delay", func(c *Config) { c.Reconnect.MaxDelay = 500 * time.Millisecond }, false},
		{"negative step", func(c *Config) { c.Bitrate.Step = -0.15 }, false},
		{"zero step", func(c *Config) { c.Bitrate.Step = 0 }, false},
		{"whole step", func(c *Config) { c.Bitrate.Step = 1 }, false},
		{"ping slower than pong wait", func(c *Config) { c.Signaling.PingPeriod = time.Minute * 2 }, false},
		{"bad ice url", func(c *Config) { c.ICEServers = []ICEServer{{URLs: []string{"http://nope"}}} }, false},
		{"turn without username", func(c *Config) {
			c.ICEServers = []ICEServer{{URLs: []string{"turn:turn.example.com:3478"}}}
		}, false},
		{"no ice servers", func(c *Config) { c.ICEServers = nil }, true},
		{"http signaling url", func(c *Config) { c.Signaling.URL = "http://signal.example.com" }, false},
		{"label with spaces", func(c *Config) { c.DataChannel.Label = "control channel" }, false},
		{"label ignored when disabled", func(c *Config) {
			c.DataChannel.Enabled = false
			c.DataChannel.Label = ""
		}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Bitrate.LossSmoothing = 0
	cfg.Reconnect.BaseDelay = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "bitrate.loss_smoothing")
	require.Contains(t, err.Error(), "reconnect.base_delay")
}

func TestValidate_LeavesConfigUntouched(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Reconnect.MaxDelay = 500 * time.Millisecond

	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	require.Equal(t, 500*time.Millisecond, cfg.Reconnect.MaxDelay)
}

func TestVideoCodecPreference(t *testing.T) {
	cfg := NewDefaultConfig()
	require.Equal(t, []string{"AV1", "VP9", "H264", "VP8"}, cfg.VideoCodecPreference())

	cfg.Media.VideoCodec = "h264"
	require.Equal(t, []string{"H264", "AV1", "VP9", "VP8"}, cfg.VideoCodecPreference())
}
