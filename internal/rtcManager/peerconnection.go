package rtcManager

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
)

const (
	iceDisconnectedTimeout = 5 * time.Second
	iceFailedTimeout       = 25 * time.Second
	iceKeepaliveInterval   = 2 * time.Second
)

type APIParams struct {
	// SettingEngine is copied; nil uses pion defaults. Tests use it to inject a vnet.
	SettingEngine *webrtc.SettingEngine
	LoggerFactory logging.LoggerFactory
}

// NewAPI builds the pion API shared by every session of one client: default
// codecs, default interceptors plus periodic PLI for received video.
func NewAPI(params APIParams) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}
	pliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create PLI interceptor: %w", err)
	}
	interceptorRegistry.Add(pliFactory)

	se := webrtc.SettingEngine{}
	if params.SettingEngine != nil {
		se = *params.SettingEngine
	}
	if params.LoggerFactory != nil {
		se.LoggerFactory = params.LoggerFactory
	}
	se.SetICETimeouts(iceDisconnectedTimeout, iceFailedTimeout, iceKeepaliveInterval)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	), nil
}

// NewPeerConnection creates the session's peer connection and, when enabled,
// the pre-negotiated control data channel.
func NewPeerConnection(api *webrtc.API, cfg *config.Config) (*webrtc.PeerConnection, *webrtc.DataChannel, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         cfg.WebRTCICEServers(),
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if !cfg.DataChannel.Enabled {
		return pc, nil, nil
	}

	ordered := true
	negotiated := true
	id := cfg.DataChannel.ID
	maxRetransmits := cfg.DataChannel.MaxRetransmits
	dc, err := pc.CreateDataChannel(cfg.DataChannel.Label, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		Negotiated:     &negotiated,
		ID:             &id,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		_ = pc.Close()
		return nil, nil, fmt.Errorf("failed to create control data channel: %w", err)
	}
	return pc, dc, nil
}
