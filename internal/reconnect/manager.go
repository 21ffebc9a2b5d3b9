// Package reconnect decides when a failed session is rebuilt and when the
// client gives up.
package reconnect

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
)

// Decision is the outcome of one failure.
type Decision struct {
	// Attempt is the 1-based attempt number, or the total attempts made when Exhausted.
	Attempt   int
	Delay     time.Duration
	Exhausted bool
}

// Manager tracks one failure streak. It is not safe for concurrent use.
type Manager struct {
	logger      *zap.Logger
	clock       clock.Clock
	maxAttempts int

	policy   backoff.BackOff
	attempts int
	timer    *clock.Timer
}

func NewManager(cfg config.ReconnectConfig, clk clock.Clock, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.L()
	}

	// base * 2^n, no jitter
	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = cfg.BaseDelay
	ebo.RandomizationFactor = 0
	ebo.Multiplier = 2
	ebo.MaxInterval = cfg.MaxDelay
	ebo.MaxElapsedTime = 0
	ebo.Clock = clk
	ebo.Reset()

	var policy backoff.BackOff = ebo
	if cfg.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(ebo, uint64(cfg.MaxAttempts))
	}

	return &Manager{
		logger:      logger.Named("reconnect"),
		clock:       clk,
		maxAttempts: cfg.MaxAttempts,
		policy:      policy,
	}
}

// Next records a failure and returns the delay before the next attempt, or
// Exhausted once MaxAttempts have been used.
func (m *Manager) Next() Decision {
	if m.attempts >= m.maxAttempts {
		return Decision{Attempt: m.attempts, Exhausted: true}
	}
	delay := m.policy.NextBackOff()
	if delay == backoff.Stop {
		return Decision{Attempt: m.attempts, Exhausted: true}
	}
	m.attempts++
	m.logger.Info("reconnect scheduled", zap.Int("attempt", m.attempts), zap.Duration("delay", delay))
	return Decision{Attempt: m.attempts, Delay: delay}
}

// Schedule runs fn after delay on the timer goroutine. Any earlier timer is cancelled.
func (m *Manager) Schedule(delay time.Duration, fn func()) {
	m.Cancel()
	m.timer = m.clock.AfterFunc(delay, fn)
}

// Pending reports whether a scheduled attempt has not run yet.
func (m *Manager) Pending() bool {
	return m.timer != nil
}

// Fired marks the scheduled attempt as started. It returns false if the
// attempt was cancelled in the meantime.
func (m *Manager) Fired() bool {
	if m.timer == nil {
		return false
	}
	m.timer = nil
	return true
}

func (m *Manager) Cancel() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
}

// Reset ends the failure streak.
func (m *Manager) Reset() {
	if m.attempts > 0 {
		m.logger.Debug("reconnect state reset", zap.Int("attempts", m.attempts))
	}
	m.attempts = 0
	m.policy.Reset()
}

func (m *Manager) Attempts() int {
	return m.attempts
}
