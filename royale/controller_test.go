package royale

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/types"
)

func TestResetReturnsFirstObservation(t *testing.T) {
	r := newRig(t, 6)
	r.battleReady()
	r.detector.Push(dets(perception.AllyKingTower, perception.AllyPrincessTower, perception.EnemyTroop))
	r.reader.Set(r.cfg.Screen.RegionToScreen(r.cfg.Screen.Timer), "2:59")

	obs, info, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, obs[0], 1e-9)
	assert.InDelta(t, 0.05, obs[2], 1e-9)
	assert.InDelta(t, 2.0/3.0, obs[3], 1e-9)
	assert.Equal(t, 6, info.Elixir)
	assert.Equal(t, 3, info.Detections)
	assert.Equal(t, 0, info.Step)

	s := r.ctrl.Environment().Snapshot()
	assert.True(t, s.InBattle)
	assert.True(t, s.TimerKnown)
	assert.Equal(t, 179, s.Timer)
	assert.Equal(t, 2, s.Score)
	assert.Nil(t, s.Prev)
	// start settle then reset settle
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, r.clock.Slept())
}

func TestResetRetriesOnceThenFails(t *testing.T) {
	r := newRig(t, 5)
	_, _, err := r.ctrl.Reset(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBattleStart)
	// two full start cycles of five backoffs plus the retry delay
	assert.Equal(t, 22*time.Second, r.clock.Total())
}

func TestResetSecondStartSucceeds(t *testing.T) {
	r := newRig(t, 5)
	r.matcher.Script(TemplateBattle, false, false, false, false, false, true)
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InBattle, r.ctrl.Environment().Battle().State())
}

func TestFirstStepRewardIsZero(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)

	// a tower disappears between reset and the first step
	r.detector.Push(
		dets(perception.EnemyKingTower, perception.EnemyPrincessTower, perception.EnemyPrincessTower),
		dets(perception.EnemyKingTower, perception.EnemyPrincessTower),
	)
	res, err := r.ctrl.Step(context.Background(), actions.WaitAction)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Reward)
	assert.Equal(t, 1, res.Info.Step)
	assert.True(t, res.Info.ActionSuccess)

	res, err = r.ctrl.Step(context.Background(), actions.WaitAction)
	require.NoError(t, err)
	assert.InDelta(t, 0.1-0.01, res.Reward, 1e-9)
}

func TestTowerDestroyedBetweenSteps(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)

	three := dets(perception.EnemyKingTower, perception.EnemyPrincessTower, perception.EnemyPrincessTower)
	two := dets(perception.EnemyKingTower, perception.EnemyPrincessTower)
	// two updates per step
	r.detector.Push(three, three, three, two)

	_, err = r.ctrl.Step(context.Background(), actions.WaitAction)
	require.NoError(t, err)
	res, err := r.ctrl.Step(context.Background(), actions.WaitAction)
	require.NoError(t, err)
	assert.InDelta(t, 100+0.1-0.01, res.Reward, 1e-9)
}

func TestTruncatesAtMaxSteps(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)

	var res types.StepResult
	for i := 1; i <= 300; i++ {
		res, err = r.ctrl.Step(context.Background(), actions.WaitAction)
		require.NoError(t, err)
		if i < 300 {
			require.False(t, res.Truncated, "step %d", i)
		}
	}
	assert.True(t, res.Truncated)
	assert.False(t, res.Terminated)
	assert.Equal(t, 300, res.Info.Step)
	assert.Equal(t, types.Ongoing, res.Info.BattleResult)
}

func TestVictoryTerminates(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	ctx := context.Background()
	_, _, err := r.ctrl.Reset(ctx)
	require.NoError(t, err)
	_, err = r.ctrl.Step(ctx, actions.WaitAction)
	require.NoError(t, err)

	r.reader.Set(r.allyBanner(), "Winner!")
	res, err := r.ctrl.Step(ctx, actions.WaitAction)
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.False(t, res.Truncated)
	assert.Equal(t, types.Victory, res.Info.BattleResult)
	assert.Equal(t, 1000.0, res.Reward)
	assert.False(t, r.ctrl.Environment().Snapshot().InBattle)
}

func TestMalformedActionFailsFast(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)

	calls := r.screen.Calls()
	_, err = r.ctrl.Step(context.Background(), 25)
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
	assert.Equal(t, calls, r.screen.Calls())
	assert.Equal(t, 0, r.ctrl.Steps())
}

func TestPlacementAndInvalidAction(t *testing.T) {
	r := newRig(t, 4)
	r.matcher.Show("knight")
	r.matcher.At("knight", image.Pt(900, 960))
	r.matcher.Show("prince")
	r.matcher.At("prince", image.Pt(800, 960))
	r.battleReady()
	ctx := context.Background()
	_, _, err := r.ctrl.Reset(ctx)
	require.NoError(t, err)

	// prince costs 5 and sits in slot 0, knight costs 3 in slot 1
	mask := r.ctrl.ActionMask()
	for id := 0; id < 6; id++ {
		assert.False(t, mask[id], "id %d", id)
	}
	for id := 6; id < 12; id++ {
		assert.True(t, mask[id], "id %d", id)
	}
	assert.True(t, mask[actions.WaitAction])

	res, err := r.ctrl.Step(ctx, 0)
	require.NoError(t, err)
	assert.False(t, res.Info.ActionSuccess)
	assert.Equal(t, 0, r.hands.PlacementCount())
	assert.Equal(t, 2, res.Info.HandSize)

	res, err = r.ctrl.Step(ctx, 7)
	require.NoError(t, err)
	assert.True(t, res.Info.ActionSuccess)
	require.Len(t, r.hands.Placements, 1)
	assert.Equal(t, image.Pt(910, 970), r.hands.Placements[0].Card)
	assert.Equal(t, image.Pt(300+735, 840+30), r.hands.Placements[0].Target)
}

func TestStepCancelled(t *testing.T) {
	r := newRig(t, 5)
	r.battleReady()
	_, _, err := r.ctrl.Reset(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ctrl.Step(ctx, actions.WaitAction)
	assert.ErrorIs(t, err, context.Canceled)
}
