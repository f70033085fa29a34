package royale

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/types"
	"github.com/zeu5/royale-rl/util"
)

// Controller exposes the Environment as an episodic environment. Calls
// must not overlap.
type Controller struct {
	env      *Environment
	exec     *actions.Executor
	perc     Perception
	timing   config.Timing
	maxSteps int
	clock    util.Clock
	log      *logrus.Entry

	steps int
}

var _ types.Environment = &Controller{}

func NewController(cfg *config.Config, env *Environment, exec *actions.Executor, perc Perception, clock util.Clock, log *logrus.Entry) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Controller{
		env:      env,
		exec:     exec,
		perc:     perc,
		timing:   cfg.Timing,
		maxSteps: cfg.Episode.MaxSteps,
		clock:    clock,
		log:      log,
	}
}

// New wires the whole control loop from the configuration and the
// perception collaborators.
func New(cfg *config.Config, perc Perception, clock util.Clock, log *logrus.Logger) *Controller {
	var entry *logrus.Entry
	if log == nil {
		entry = logger.Discard()
		log = entry.Logger
	}
	battle := NewBattleDetector(cfg.Screen, cfg.Timing, perc.Capturer, perc.Matcher, perc.Reader, perc.Clicker, clock, logger.Component(log, "battle"))
	env := NewEnvironment(cfg, perc, battle, logger.Component(log, "environment"))
	exec := actions.NewExecutor(cfg.Screen, perc.Placer, logger.Component(log, "executor"))
	return NewController(cfg, env, exec, perc, clock, logger.Component(log, "controller"))
}

func (c *Controller) Environment() *Environment {
	return c.env
}

func (c *Controller) Steps() int {
	return c.steps
}

// Reset starts a new battle, retrying once, and returns the first
// observation.
func (c *Controller) Reset(ctx context.Context) (types.Observation, types.Info, error) {
	if err := c.env.StartNewBattle(ctx); err != nil {
		if ctx.Err() != nil {
			return types.Observation{}, types.Info{}, ctx.Err()
		}
		c.log.WithError(err).Warn("battle did not start, retrying")
		if err := c.clock.Sleep(ctx, c.timing.ResetRetryDelay); err != nil {
			return types.Observation{}, types.Info{}, err
		}
		if err := c.env.StartNewBattle(ctx); err != nil {
			return types.Observation{}, types.Info{}, fmt.Errorf("reset: %w", err)
		}
	}
	if err := c.clock.Sleep(ctx, c.timing.ResetSettle); err != nil {
		return types.Observation{}, types.Info{}, err
	}

	frame, err := c.perc.Capturer.Capture(ctx)
	if err != nil {
		return types.Observation{}, types.Info{}, fmt.Errorf("reset: capture: %w", err)
	}
	c.env.Update(ctx, frame)
	c.env.ClearPrevious()
	c.steps = 0

	info := c.info()
	c.log.WithFields(logrus.Fields{
		"elixir":     info.Elixir,
		"hand":       info.HandSize,
		"detections": info.Detections,
	}).Info("episode reset")
	return c.env.Observation(), info, nil
}

// Step executes one tick. A malformed action id fails before anything is
// read from the screen; an unplayable action is a no-op tick.
func (c *Controller) Step(ctx context.Context, action int) (types.StepResult, error) {
	if _, err := actions.Decode(action); err != nil {
		return types.StepResult{}, err
	}
	start := time.Now()

	frame, err := c.perc.Capturer.Capture(ctx)
	if err != nil {
		return types.StepResult{}, fmt.Errorf("step: capture: %w", err)
	}
	c.env.Update(ctx, frame)

	hand := c.env.Hand()
	elixir := c.env.Elixir()
	c.log.WithFields(logrus.Fields{
		"step":   c.steps,
		"action": action,
		"elixir": elixir,
		"hand":   len(hand),
		"valid":  actions.ValidActions(hand, elixir),
	}).Debug("decision")

	outcome, err := c.exec.Execute(ctx, action, hand, elixir)
	if err != nil {
		return types.StepResult{}, err
	}

	if err := c.clock.Sleep(ctx, c.timing.ActionSettle); err != nil {
		return types.StepResult{}, err
	}
	frame, err = c.perc.Capturer.Capture(ctx)
	if err != nil {
		return types.StepResult{}, fmt.Errorf("step: capture: %w", err)
	}
	c.env.Update(ctx, frame)
	result := c.env.BattleEnded(ctx, frame)

	c.steps++
	res := types.StepResult{
		Observation: c.env.Observation(),
		Reward:      c.env.Reward(action, result),
		Terminated:  result.Terminal(),
		Truncated:   c.steps >= c.maxSteps,
	}
	res.Info = c.info()
	res.Info.ActionSuccess = outcome.Success()
	res.Info.BattleResult = result

	c.log.WithFields(logrus.Fields{
		"step":       res.Info.Step,
		"action":     outcome.Move.String(),
		"outcome":    outcome.Reason,
		"reward":     res.Reward,
		"terminated": res.Terminated,
		"truncated":  res.Truncated,
		"took":       time.Since(start),
	}).Debug("step")
	return res, nil
}

// ActionMask for the hand and elixir of the last update.
func (c *Controller) ActionMask() []bool {
	return actions.Mask(c.env.Hand(), c.env.Elixir())
}

func (c *Controller) info() types.Info {
	s := c.env.Snapshot()
	return types.Info{
		Elixir:     s.Elixir,
		HandSize:   len(s.Hand),
		Detections: len(s.Detections),
		Step:       c.steps,
	}
}
