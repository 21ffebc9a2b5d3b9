package quality

import (
	"math"

	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
)

// Action is a quality-change directive.
type Action string

const (
	ActionNone     Action = ""
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionIncrease, ActionDecrease:
		return Action(s), true
	default:
		return ActionNone, false
	}
}

// Controller applies the loss-threshold rule to telemetry and tracks the
// local target bitrate adjusted by quality-change requests.
type Controller struct {
	cfg    config.BitrateConfig
	logger *zap.Logger

	targetKbps  int
	adjustments int
}

func NewController(cfg config.BitrateConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.L()
	}
	return &Controller{
		cfg:        cfg,
		logger:     logger.Named("adaptive"),
		targetKbps: cfg.MaxKbps,
	}
}

// Decide returns the directive for one telemetry sample.
func (c *Controller) Decide(s Snapshot) Action {
	if !c.cfg.Adaptive {
		return ActionNone
	}
	switch {
	case s.LossRatio > c.cfg.DecreaseThreshold:
		return ActionDecrease
	case s.LossRatio < c.cfg.IncreaseThreshold && s.Bitrate < float64(c.cfg.MaxKbps)*1000:
		return ActionIncrease
	default:
		return ActionNone
	}
}

// Apply moves the target bitrate one step in the direction of action, within
// [MinKbps, MaxKbps]. It reports whether the target changed.
func (c *Controller) Apply(action Action) (targetKbps int, changed bool) {
	old := c.targetKbps
	switch action {
	case ActionIncrease:
		c.targetKbps = clampInt(int(math.Round(float64(old)*(1+c.cfg.Step))), c.cfg.MinKbps, c.cfg.MaxKbps)
	case ActionDecrease:
		c.targetKbps = clampInt(int(math.Round(float64(old)*(1-c.cfg.Step))), c.cfg.MinKbps, c.cfg.MaxKbps)
	default:
		return old, false
	}

	if c.targetKbps == old {
		c.logger.Debug("target bitrate at bound", zap.String("action", string(action)), zap.Int("kbps", old))
		return old, false
	}
	c.adjustments++
	c.logger.Info("target bitrate changed",
		zap.String("action", string(action)),
		zap.Int("fromKbps", old),
		zap.Int("toKbps", c.targetKbps),
	)
	return c.targetKbps, true
}

func (c *Controller) TargetKbps() int {
	return c.targetKbps
}

func (c *Controller) Adjustments() int {
	return c.adjustments
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
