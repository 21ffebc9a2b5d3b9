package config

import (
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/validate"
)

// Config holds all client configuration
type Config struct {
	Signaling   SignalingConfig   `mapstructure:"signaling"`
	ICEServers  []ICEServer       `mapstructure:"ice_servers"`
	Media       MediaConfig       `mapstructure:"media"`
	Bitrate     BitrateConfig     `mapstructure:"bitrate"`
	Reconnect   ReconnectConfig   `mapstructure:"reconnect"`
	DataChannel DataChannelConfig `mapstructure:"data_channel"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type SignalingConfig struct {
	URL       string `mapstructure:"url"`
	ChannelID string `mapstructure:"channel_id"`

	// DialTimeout bounds the websocket handshake.
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongWait is the read deadline; every pong pushes it forward.
	PongWait   time.Duration `mapstructure:"pong_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type MediaConfig struct {
	Audio bool `mapstructure:"audio"`
	Video bool `mapstructure:"video"`

	// VideoCodec forces a codec. Empty picks the most efficient one the remote offers.
	VideoCodec  string   `mapstructure:"video_codec"`
	VideoCodecs []string `mapstructure:"video_codecs"`
	AudioCodec  string   `mapstructure:"audio_codec"`
}

type BitrateConfig struct {
	MinKbps  int  `mapstructure:"min_kbps"`
	MaxKbps  int  `mapstructure:"max_kbps"`
	Adaptive bool `mapstructure:"adaptive"`

	LossSmoothing     float64 `mapstructure:"loss_smoothing"`
	DecreaseThreshold float64 `mapstructure:"decrease_threshold"`
	IncreaseThreshold float64 `mapstructure:"increase_threshold"`
	// Step is the fraction the target bitrate moves per quality-change.
	Step float64 `mapstructure:"step"`

	StatsInterval        time.Duration `mapstructure:"stats_interval"`
	LatencyProbeInterval time.Duration `mapstructure:"latency_probe_interval"`
}

type ReconnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type DataChannelConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Label          string `mapstructure:"label"`
	ID             uint16 `mapstructure:"id"`
	MaxRetransmits uint16 `mapstructure:"max_retransmits"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Signaling: SignalingConfig{
			URL:          "ws://localhost:7000/ws",
			DialTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Second,
			PongWait:     60 * time.Second,
			PingPeriod:   54 * time.Second,
		},
		ICEServers: []ICEServer{
			{
				URLs: []string{
					"stun:stun.l.google.com:19302",
					"stun:stun1.l.google.com:19302",
				},
			},
		},
		Media: MediaConfig{
			Audio:       true,
			Video:       true,
			VideoCodecs: []string{"AV1", "VP9", "H264", "VP8"},
			AudioCodec:  "opus",
		},
		Bitrate: BitrateConfig{
			MinKbps:              300,
			MaxKbps:              2500,
			Adaptive:             true,
			LossSmoothing:        100,
			DecreaseThreshold:    0.05,
			IncreaseThreshold:    0.01,
			Step:                 0.15,
			StatsInterval:        time.Second,
			LatencyProbeInterval: 5 * time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
		},
		DataChannel: DataChannelConfig{
			Enabled:        true,
			Label:          "control",
			ID:             0,
			MaxRetransmits: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks value ranges and ICE server URLs. Every problem found is
// reported in one error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	v := &validate.Validator{}

	if c.Signaling.URL != "" && !validate.IsWebSocketURL(c.Signaling.URL) {
		v.AddError("signaling.url %q is not a ws:// or wss:// URL", c.Signaling.URL)
	}
	if c.Signaling.PingPeriod >= c.Signaling.PongWait {
		v.AddError("signaling.ping_period must be shorter than signaling.pong_wait")
	}

	if c.Bitrate.MinKbps <= 0 || c.Bitrate.MaxKbps <= 0 {
		v.AddError("bitrate bounds must be positive")
	} else if c.Bitrate.MinKbps > c.Bitrate.MaxKbps {
		v.AddError("bitrate.min_kbps %d exceeds bitrate.max_kbps %d", c.Bitrate.MinKbps, c.Bitrate.MaxKbps)
	}
	if c.Bitrate.LossSmoothing <= 0 {
		v.AddError("bitrate.loss_smoothing must be positive")
	}
	if c.Bitrate.IncreaseThreshold > c.Bitrate.DecreaseThreshold {
		v.AddError("bitrate.increase_threshold above bitrate.decrease_threshold")
	}
	if c.Bitrate.Step <= 0 || c.Bitrate.Step >= 1 {
		v.AddError("bitrate.step %v must be between 0 and 1", c.Bitrate.Step)
	}
	if c.Bitrate.StatsInterval <= 0 {
		v.AddError("bitrate.stats_interval must be positive")
	}

	if c.Reconnect.MaxAttempts < 0 {
		v.AddError("reconnect.max_attempts cannot be negative")
	}
	if c.Reconnect.BaseDelay <= 0 {
		v.AddError("reconnect.base_delay must be positive")
	} else if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		v.AddError("reconnect.max_delay %s below reconnect.base_delay %s", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	if c.DataChannel.Enabled && !validate.IsAlphanumericWithDashes(c.DataChannel.Label) {
		v.AddError("data_channel.label %q must be letters, digits, dashes or underscores", c.DataChannel.Label)
	}

	for _, server := range c.ICEServers {
		if len(server.URLs) == 0 {
			v.AddError("ice server without urls")
			continue
		}
		for _, raw := range server.URLs {
			uri, err := stun.ParseURI(raw)
			if err != nil {
				v.AddError("ice server %q: %v", raw, err)
				continue
			}
			if (uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS) && server.Username == "" {
				v.AddError("turn server %q requires a username", raw)
			}
		}
	}

	return v.Err(ErrInvalidConfig)
}

// WebRTCICEServers converts the configured servers to pion's type
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		server := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...)}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return servers
}

// VideoCodecPreference is the ordered list of video codecs to look for in a description.
func (c *Config) VideoCodecPreference() []string {
	prefs := make([]string, 0, len(c.Media.VideoCodecs)+1)
	if c.Media.VideoCodec != "" {
		prefs = append(prefs, strings.ToUpper(c.Media.VideoCodec))
	}
	for _, codec := range c.Media.VideoCodecs {
		codec = strings.ToUpper(codec)
		if codec != "" && (len(prefs) == 0 || prefs[0] != codec) {
			prefs = append(prefs, codec)
		}
	}
	return prefs
}
