package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/control"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/rtcManager"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/signaling"
)

// session is one transport session to the remote endpoint. A reconnect
// replaces it with a fresh one carrying a higher generation.
type session struct {
	id         string
	generation uint64
	createdAt  time.Time
	attempt    int

	negotiator *rtcManager.Manager
	signaling  *signaling.Client
	control    *control.Channel
}

// close releases the data channel, then the peer connection, then the signaling socket.
func (s *session) close(logger *zap.Logger) {
	if err := s.control.Close(); err != nil {
		logger.Warn("failed to close control channel", zap.Error(err), zap.String("sessionID", s.id))
	}
	if err := s.negotiator.Close(); err != nil {
		logger.Warn("failed to close peer connection", zap.Error(err), zap.String("sessionID", s.id))
	}
	s.signaling.Close()

	logger.Debug("session closed",
		zap.String("sessionID", s.id),
		zap.Uint64("generation", s.generation),
		zap.Time("createdAt", s.createdAt),
	)
}
