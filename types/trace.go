package types

// Step is one recorded transition of an episode.
type Step struct {
	Index       int         `json:"index"`
	Observation Observation `json:"observation"`
	Action      int         `json:"action"`
	Reward      float64     `json:"reward"`
	Next        Observation `json:"next"`
	Terminated  bool        `json:"terminated"`
	Truncated   bool        `json:"truncated"`
	Info        Info        `json:"info"`
}

// Trace of an episode as a sequence of transitions
type Trace struct {
	Steps []Step `json:"steps"`
}

func NewTrace() *Trace {
	return &Trace{
		Steps: make([]Step, 0),
	}
}

func (t *Trace) Append(step int, obs Observation, action int, res StepResult) {
	t.Steps = append(t.Steps, Step{
		Index:       step,
		Observation: obs,
		Action:      action,
		Reward:      res.Reward,
		Next:        res.Observation,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	})
}

func (t *Trace) Len() int {
	return len(t.Steps)
}

func (t *Trace) Get(i int) (Step, bool) {
	if i < 0 || i >= len(t.Steps) {
		return Step{}, false
	}
	return t.Steps[i], true
}

func (t *Trace) Last() (Step, bool) {
	return t.Get(len(t.Steps) - 1)
}

func (t *Trace) Slice(from, to int) *Trace {
	sliced := NewTrace()
	for i := from; i < to && i < len(t.Steps); i++ {
		s := t.Steps[i]
		s.Index = i - from
		sliced.Steps = append(sliced.Steps, s)
	}
	return sliced
}

// Return is the undiscounted sum of rewards.
func (t *Trace) Return() float64 {
	sum := 0.0
	for _, s := range t.Steps {
		sum += s.Reward
	}
	return sum
}

// Result is the battle result of the last step, if any.
func (t *Trace) Result() BattleResult {
	last, ok := t.Last()
	if !ok {
		return Ongoing
	}
	return last.Info.BattleResult
}
