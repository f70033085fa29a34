package types

import (
	"errors"
	"time"
)

var ErrEmptyMask = errors.New("no valid action")

// StepObserver is notified after every executed step.
type StepObserver func(episode int, step Step)

type AgentConfig struct {
	// Horizon bounds the number of steps taken in an episode. The
	// environment normally truncates first.
	Horizon     int
	Policy      Policy
	Environment Environment
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config      *AgentConfig
	policy      Policy
	environment Environment
	observers   []StepObserver
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:      config,
		policy:      config.Policy,
		environment: config.Environment,
		observers:   make([]StepObserver, 0),
	}
}

func (a *Agent) AddObserver(o StepObserver) {
	a.observers = append(a.observers, o)
}

// RunEpisode runs a single episode, filling the episode context with the
// trace and the way the episode ended.
func (a *Agent) RunEpisode(eCtx *EpisodeContext) {
	start := time.Now()
	obs, _, err := a.environment.Reset(eCtx.Context)
	eCtx.Report.AddTimeEntry(time.Since(start), "reset_time", "agent.RunEpisode")
	if err != nil {
		eCtx.SetError(err)
		return
	}

	for i := 0; a.config.Horizon <= 0 || i < a.config.Horizon; i++ {
		select {
		case <-eCtx.Context.Done():
			eCtx.SetError(eCtx.Context.Err())
			return
		default:
		}
		eCtx.Report.setEpisodeStep(i)

		action, ok := a.policy.NextAction(i, obs, a.environment.ActionMask())
		if !ok {
			eCtx.SetError(ErrEmptyMask)
			return
		}

		stepStart := time.Now()
		res, err := a.environment.Step(eCtx.Context, action)
		eCtx.Report.AddTimeEntry(time.Since(stepStart), "step_time", "agent.RunEpisode")
		if err != nil {
			eCtx.SetError(err)
			return
		}
		a.policy.Update(i, obs, action, res)
		eCtx.Trace.Append(i, obs, action, res)
		eCtx.Timesteps++

		last, _ := eCtx.Trace.Last()
		for _, o := range a.observers {
			o(eCtx.Episode, last)
		}

		obs = res.Observation
		if res.Done() {
			eCtx.Terminated = res.Terminated
			eCtx.Truncated = res.Truncated
			eCtx.Result = res.Info.BattleResult
			eCtx.Report.AddIntEntry(eCtx.Timesteps, "episode_length", "agent.RunEpisode")
			break
		}
	}
	a.policy.UpdateIteration(eCtx.Episode, eCtx.Trace)
}
