package types

import (
	"context"
	"fmt"
	"strings"
)

// ObservationSize is the length of the normalized feature vector.
const ObservationSize = 5

// Observation is the normalized feature snapshot handed to policies. Every
// element is in [0,1].
type Observation [ObservationSize]float64

func (o Observation) String() string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// BattleResult is the outcome of a battle. The zero value means the battle
// is still going.
type BattleResult string

const (
	Ongoing BattleResult = ""
	Victory BattleResult = "victory"
	Defeat  BattleResult = "defeat"
	Draw    BattleResult = "draw"
)

func (b BattleResult) Terminal() bool {
	return b != Ongoing
}

func (b BattleResult) String() string {
	if b == Ongoing {
		return "none"
	}
	return string(b)
}

// Info accompanies every observation.
type Info struct {
	Elixir        int          `json:"elixir"`
	HandSize      int          `json:"hand_size"`
	Detections    int          `json:"detections"`
	ActionSuccess bool         `json:"action_success"`
	BattleResult  BattleResult `json:"battle_result"`
	Step          int          `json:"step"`
}

type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Terminated  bool        `json:"terminated"`
	Truncated   bool        `json:"truncated"`
	Info        Info        `json:"info"`
}

// Done is true when the episode is over for either reason.
func (s StepResult) Done() bool {
	return s.Terminated || s.Truncated
}

// Environment is the episodic contract between the game and a learner.
type Environment interface {
	// Reset starts a new episode and returns the first observation
	Reset(context.Context) (Observation, Info, error)
	// Step executes one decision tick
	Step(context.Context, int) (StepResult, error)
	// ActionMask of the actions valid in the current state
	ActionMask() []bool
}
