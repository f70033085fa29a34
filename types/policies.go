package types

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

type Policy interface {
	// NextAction picks an action id among those enabled by the mask
	NextAction(step int, obs Observation, mask []bool) (int, bool)
	// Update with the transition observed after the action
	Update(step int, obs Observation, action int, res StepResult)
	// UpdateIteration is called with the full trace at the end of an episode
	UpdateIteration(episode int, trace *Trace)
	Reset()
	// Record the learned state to path
	Record(path string) error
}

// RandomPolicy samples uniformly among the valid actions.
type RandomPolicy struct {
	src rand.Source
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy() *RandomPolicy {
	return NewRandomPolicyWithSeed(uint64(time.Now().UnixNano()))
}

func NewRandomPolicyWithSeed(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		src: rand.NewSource(seed),
	}
}

func (r *RandomPolicy) Reset() {}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {}

func (r *RandomPolicy) Update(_ int, _ Observation, _ int, _ StepResult) {}

func (r *RandomPolicy) Record(_ string) error { return nil }

func (r *RandomPolicy) NextAction(_ int, _ Observation, mask []bool) (int, bool) {
	weights := make([]float64, len(mask))
	valid := false
	for i, ok := range mask {
		if ok {
			weights[i] = 1
			valid = true
		}
	}
	if !valid {
		return 0, false
	}
	return sampleuv.NewWeighted(weights, r.src).Take()
}
