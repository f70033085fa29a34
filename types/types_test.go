package types

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdownEnv ends every episode with result after length steps.
type countdownEnv struct {
	length   int
	result   BattleResult
	step     int
	resetErr error
	onStep   func(step int)
}

func (c *countdownEnv) Reset(_ context.Context) (Observation, Info, error) {
	c.step = 0
	if c.resetErr != nil {
		return Observation{}, Info{}, c.resetErr
	}
	return Observation{0.5}, Info{}, nil
}

func (c *countdownEnv) Step(ctx context.Context, action int) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	c.step++
	if c.onStep != nil {
		c.onStep(c.step)
	}
	res := StepResult{
		Observation: Observation{float64(c.step) / 10},
		Reward:      1,
		Info:        Info{Step: c.step},
	}
	if c.step >= c.length {
		res.Terminated = true
		res.Info.BattleResult = c.result
	}
	return res, nil
}

func (c *countdownEnv) ActionMask() []bool {
	mask := make([]bool, 25)
	mask[24] = true
	mask[3] = true
	return mask
}

type recordingPolicy struct {
	RandomPolicy
	updates   int
	iteration int
}

func (r *recordingPolicy) Update(_ int, _ Observation, _ int, _ StepResult) { r.updates++ }

func (r *recordingPolicy) UpdateIteration(_ int, _ *Trace) { r.iteration++ }

func (r *recordingPolicy) Record(path string) error {
	return os.WriteFile(path, []byte("{}"), 0644)
}

func TestRandomPolicyRespectsMask(t *testing.T) {
	p := NewRandomPolicyWithSeed(7)
	mask := make([]bool, 25)
	mask[4] = true
	mask[24] = true
	for i := 0; i < 100; i++ {
		a, ok := p.NextAction(i, Observation{}, mask)
		require.True(t, ok)
		assert.Contains(t, []int{4, 24}, a)
	}
	_, ok := p.NextAction(0, Observation{}, make([]bool, 25))
	assert.False(t, ok)
}

func TestAgentRunEpisode(t *testing.T) {
	env := &countdownEnv{length: 3, result: Victory}
	policy := &recordingPolicy{RandomPolicy: *NewRandomPolicyWithSeed(1)}
	agent := NewAgent(&AgentConfig{Horizon: 10, Policy: policy, Environment: env})

	observed := 0
	agent.AddObserver(func(_ int, _ Step) { observed++ })

	eCtx := NewEpisodeContext(context.Background(), 0, "test", 0)
	agent.RunEpisode(eCtx)

	require.NoError(t, eCtx.Err)
	assert.Equal(t, 3, eCtx.Timesteps)
	assert.True(t, eCtx.Terminated)
	assert.Equal(t, Victory, eCtx.Result)
	assert.Equal(t, 3, observed)
	assert.Equal(t, 3, policy.updates)
	assert.Equal(t, 1, policy.iteration)
	assert.Equal(t, 3.0, eCtx.Trace.Return())
	assert.Equal(t, Victory, eCtx.Trace.Result())

	first, ok := eCtx.Trace.Get(0)
	require.True(t, ok)
	assert.Equal(t, Observation{0.5}, first.Observation)
	assert.Equal(t, 0.1, first.Next[0])
}

func TestAgentResetError(t *testing.T) {
	env := &countdownEnv{length: 3, resetErr: errors.New("no battle")}
	agent := NewAgent(&AgentConfig{Policy: NewRandomPolicyWithSeed(1), Environment: env})
	eCtx := NewEpisodeContext(context.Background(), 0, "test", 0)
	agent.RunEpisode(eCtx)
	assert.EqualError(t, eCtx.Err, "no battle")
	assert.Equal(t, 0, eCtx.Trace.Len())
}

func TestExperimentRecordsTracesAndPolicy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "policies"), 0755))

	env := &countdownEnv{length: 2, result: Defeat}
	policy := &recordingPolicy{RandomPolicy: *NewRandomPolicyWithSeed(1)}
	analyzer := NewRewardAnalyzer()
	exp := NewExperiment("random", policy, env, nil)

	summary := exp.Run(context.Background(), &RunConfig{
		Episodes:     3,
		Horizon:      10,
		Analyzers:    []Analyzer{analyzer},
		RecordPath:   dir,
		RecordTraces: true,
		RecordPolicy: true,
	})

	assert.Equal(t, 3, summary.Episodes)
	assert.Equal(t, 3, summary.Terminated)
	assert.Equal(t, 6, summary.Timesteps)
	assert.False(t, summary.Interrupted)

	stats := analyzer.Stats()
	assert.Equal(t, []float64{2, 2, 2}, stats.Returns)
	assert.Equal(t, 3, stats.Results[Defeat])
	assert.Equal(t, 0.0, stats.WinRate())

	f, err := os.Open(filepath.Join(dir, "traces", "random_0.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var tr Trace
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &tr))
		assert.Equal(t, 2, tr.Len())
		lines++
	}
	assert.Equal(t, 3, lines)
	assert.FileExists(t, filepath.Join(dir, "policies", "random_0.json"))
}

func TestExperimentInterruptStillRecordsPolicy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "policies"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	env := &countdownEnv{length: 5, onStep: func(step int) {
		if step == 2 {
			cancel()
		}
	}}
	policy := &recordingPolicy{RandomPolicy: *NewRandomPolicyWithSeed(1)}
	summary := NewExperiment("q", policy, env, nil).Run(ctx, &RunConfig{
		Episodes:     10,
		RecordPath:   dir,
		RecordPolicy: true,
	})

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 0, summary.Episodes)
	assert.FileExists(t, filepath.Join(dir, "policies", "q_0.json"))
}

func TestExperimentAbortsOnConsecutiveErrors(t *testing.T) {
	env := &countdownEnv{length: 2, resetErr: errors.New("emulator offline")}
	summary := NewExperiment("x", NewRandomPolicyWithSeed(1), env, nil).Run(context.Background(), &RunConfig{
		Episodes:               20,
		ConsecutiveErrorsAbort: 3,
	})
	assert.True(t, summary.Aborted)
	assert.Equal(t, 3, summary.Errors)
}

func TestExperimentLogsUnwritableReport(t *testing.T) {
	dir := t.TempDir()
	// a plain file where the report directory should be
	require.NoError(t, os.WriteFile(filepath.Join(dir, "epReports"), nil, 0644))

	log, hook := logtest.NewNullLogger()
	env := &countdownEnv{length: 2, resetErr: errors.New("emulator offline")}
	summary := NewExperiment("x", NewRandomPolicyWithSeed(1), env, logrus.NewEntry(log)).Run(context.Background(), &RunConfig{
		Episodes:      1,
		RecordPath:    dir,
		RecordReports: true,
	})
	assert.Equal(t, 1, summary.Errors)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "could not record episode report" {
			warned = true
			assert.NotNil(t, entry.Data[logrus.ErrorKey])
		}
	}
	assert.True(t, warned)
}

func TestRewardStats(t *testing.T) {
	s := &RewardStats{Returns: []float64{1, 3}, Lengths: []float64{10, 20}, Results: map[BattleResult]int{Victory: 1, Draw: 1}}
	mean, std := s.MeanReturn()
	assert.Equal(t, 2.0, mean)
	assert.InDelta(t, 1.4142, std, 1e-3)
	assert.Equal(t, 15.0, s.MeanLength())
	assert.Equal(t, 0.5, s.WinRate())
}

func TestTraceSlice(t *testing.T) {
	tr := NewTrace()
	for i := 0; i < 4; i++ {
		tr.Append(i, Observation{}, i, StepResult{Reward: float64(i)})
	}
	s := tr.Slice(1, 3)
	require.Equal(t, 2, s.Len())
	first, _ := s.Get(0)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, first.Action)
	_, ok := s.Get(5)
	assert.False(t, ok)
}
