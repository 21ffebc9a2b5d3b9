package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "STREAMCLIENT"

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Load reads an optional YAML file on top of the defaults. Environment variables
// prefixed with STREAMCLIENT_ override both, e.g. STREAMCLIENT_SIGNALING_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, NewDefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}
	// a base delay above the ceiling lifts the ceiling with it
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.BaseDelay {
		cfg.Reconnect.MaxDelay = cfg.Reconnect.BaseDelay
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// every key needs a default for AutomaticEnv to see it during Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("signaling.url", d.Signaling.URL)
	v.SetDefault("signaling.channel_id", d.Signaling.ChannelID)
	v.SetDefault("signaling.dial_timeout", d.Signaling.DialTimeout)
	v.SetDefault("signaling.write_timeout", d.Signaling.WriteTimeout)
	v.SetDefault("signaling.pong_wait", d.Signaling.PongWait)
	v.SetDefault("signaling.ping_period", d.Signaling.PingPeriod)

	v.SetDefault("ice_servers", d.ICEServers)

	v.SetDefault("media.audio", d.Media.Audio)
	v.SetDefault("media.video", d.Media.Video)
	v.SetDefault("media.video_codec", d.Media.VideoCodec)
	v.SetDefault("media.video_codecs", d.Media.VideoCodecs)
	v.SetDefault("media.audio_codec", d.Media.AudioCodec)

	v.SetDefault("bitrate.min_kbps", d.Bitrate.MinKbps)
	v.SetDefault("bitrate.max_kbps", d.Bitrate.MaxKbps)
	v.SetDefault("bitrate.adaptive", d.Bitrate.Adaptive)
	v.SetDefault("bitrate.loss_smoothing", d.Bitrate.LossSmoothing)
	v.SetDefault("bitrate.decrease_threshold", d.Bitrate.DecreaseThreshold)
	v.SetDefault("bitrate.increase_threshold", d.Bitrate.IncreaseThreshold)
	v.SetDefault("bitrate.step", d.Bitrate.Step)
	v.SetDefault("bitrate.stats_interval", d.Bitrate.StatsInterval)
	v.SetDefault("bitrate.latency_probe_interval", d.Bitrate.LatencyProbeInterval)

	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)
	v.SetDefault("reconnect.base_delay", d.Reconnect.BaseDelay)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)

	v.SetDefault("data_channel.enabled", d.DataChannel.Enabled)
	v.SetDefault("data_channel.label", d.DataChannel.Label)
	v.SetDefault("data_channel.id", d.DataChannel.ID)
	v.SetDefault("data_channel.max_retransmits", d.DataChannel.MaxRetransmits)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
}
