// Package royale turns screen perception into the episodic step/reset
// contract: battle lifecycle, game state, features and rewards.
package royale

import (
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/types"
)

const (
	MaxElixir    = 10
	troopCeiling = 20
	towerCeiling = 3
)

// Features is the snapshot derived from one tick of perception. Tower
// counts are detection counts, a proxy for towers alive.
type Features struct {
	Elixir      int `json:"elixir"`
	AllyTroops  int `json:"ally_troops"`
	EnemyTroops int `json:"enemy_troops"`
	AllyTowers  int `json:"ally_towers"`
	EnemyTowers int `json:"enemy_towers"`
}

// StateManager extracts features from detections. It holds no game state.
type StateManager struct {
	// DetectorSize is the side of the square frame detections live in.
	DetectorSize int
}

func NewStateManager(detectorSize int) StateManager {
	return StateManager{DetectorSize: detectorSize}
}

// ExtractFeatures counts troops and towers per side in a single pass. No
// detections yields zero counts.
func (s StateManager) ExtractFeatures(elixir int, dets []perception.Detection) Features {
	f := Features{Elixir: clampInt(elixir, 0, MaxElixir)}
	for _, d := range dets {
		switch d.Class {
		case perception.AllyTroop:
			f.AllyTroops++
		case perception.EnemyTroop:
			f.EnemyTroops++
		case perception.AllyKingTower, perception.AllyPrincessTower:
			f.AllyTowers++
		case perception.EnemyKingTower, perception.EnemyPrincessTower:
			f.EnemyTowers++
		}
	}
	return f
}

// Encode normalizes features into the observation vector. Duplicate
// detections can push counts past their ceiling, so every entry is clamped.
func (s StateManager) Encode(f Features) types.Observation {
	return types.Observation{
		clamp01(float64(f.Elixir) / MaxElixir),
		clamp01(float64(minInt(f.AllyTroops, troopCeiling)) / troopCeiling),
		clamp01(float64(minInt(f.EnemyTroops, troopCeiling)) / troopCeiling),
		clamp01(float64(f.AllyTowers) / towerCeiling),
		clamp01(float64(f.EnemyTowers) / towerCeiling),
	}
}

// NormalizedDetection is a detection expressed as fractions of the
// detector frame.
type NormalizedDetection struct {
	X, Y, Width, Height float64
	Class               perception.Class
}

func (s StateManager) NormalizeDetections(dets []perception.Detection) []NormalizedDetection {
	size := float64(s.DetectorSize)
	out := make([]NormalizedDetection, 0, len(dets))
	if size <= 0 {
		return out
	}
	for _, d := range dets {
		out = append(out, NormalizedDetection{
			X:      d.X / size,
			Y:      d.Y / size,
			Width:  d.Width / size,
			Height: d.Height / size,
			Class:  d.Class,
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
