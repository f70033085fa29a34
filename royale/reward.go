package royale

import (
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/types"
)

const (
	spendBonus = 0.1
	capPenalty = 0.5
)

// Breakdown holds the individual terms of a reward.
type Breakdown struct {
	Terminal       float64 `json:"terminal"`
	TowerDestroyed float64 `json:"tower_destroyed"`
	TowerLost      float64 `json:"tower_lost"`
	Elixir         float64 `json:"elixir"`
	Time           float64 `json:"time"`
}

func (b Breakdown) Total() float64 {
	return b.Terminal + b.TowerDestroyed + b.TowerLost + b.Elixir + b.Time
}

// RewardCalculator shapes a scalar reward from two feature snapshots.
type RewardCalculator struct {
	weights config.Rewards
}

func NewRewardCalculator(weights config.Rewards) *RewardCalculator {
	return &RewardCalculator{weights: weights}
}

func (r *RewardCalculator) Weights() config.Rewards {
	return r.weights
}

func (r *RewardCalculator) Calculate(prev, curr Features, action int, result types.BattleResult) float64 {
	return r.Breakdown(prev, curr, action, result).Total()
}

// Breakdown computes the reward terms. A terminal result short-circuits
// every shaping term.
func (r *RewardCalculator) Breakdown(prev, curr Features, _ int, result types.BattleResult) Breakdown {
	switch result {
	case types.Victory:
		return Breakdown{Terminal: r.weights.Win}
	case types.Defeat:
		return Breakdown{Terminal: r.weights.Loss}
	case types.Draw:
		return Breakdown{Terminal: r.weights.Draw}
	}

	b := Breakdown{Time: r.weights.TimePenalty}
	if destroyed := prev.EnemyTowers - curr.EnemyTowers; destroyed > 0 {
		b.TowerDestroyed = r.weights.TowerDestroyed * float64(destroyed)
	}
	if lost := prev.AllyTowers - curr.AllyTowers; lost > 0 {
		b.TowerLost = r.weights.TowerLost * float64(lost)
	}
	if curr.Elixir < MaxElixir {
		b.Elixir = spendBonus * r.weights.ElixirAdvantage
	} else {
		b.Elixir = -capPenalty * r.weights.ElixirAdvantage
	}
	return b
}
