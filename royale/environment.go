package royale

import (
	"context"
	"image"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/types"
)

// GameState is the per battle state owned by the Environment.
type GameState struct {
	Elixir     int                    `json:"elixir"`
	Timer      int                    `json:"timer"`
	TimerKnown bool                   `json:"timer_known"`
	Detections []perception.Detection `json:"detections"`
	Hand       []actions.HandSlot     `json:"hand"`
	Score      int                    `json:"score"`
	InBattle   bool                   `json:"in_battle"`
	Prev       *Features              `json:"prev,omitempty"`
}

// Perception groups the collaborators the environment reads the screen
// and acts through.
type Perception struct {
	Capturer perception.Capturer
	Matcher  perception.TemplateMatcher
	Reader   perception.TextReader
	Detector perception.ObjectDetector
	Clicker  perception.Clicker
	Placer   perception.Placer
}

// Environment owns the GameState and refreshes it from perception once per
// update.
type Environment struct {
	screen config.Screen
	deck   config.Deck
	perc   Perception
	battle *BattleDetector
	states StateManager
	reward *RewardCalculator
	log    *logrus.Entry

	mu    sync.RWMutex
	state GameState
}

func NewEnvironment(cfg *config.Config, perc Perception, battle *BattleDetector, log *logrus.Entry) *Environment {
	if log == nil {
		log = logger.Discard()
	}
	return &Environment{
		screen: cfg.Screen,
		deck:   cfg.Deck,
		perc:   perc,
		battle: battle,
		states: NewStateManager(cfg.Screen.DetectorSize),
		reward: NewRewardCalculator(cfg.Rewards),
		log:    log,
	}
}

func (e *Environment) Battle() *BattleDetector {
	return e.battle
}

// ScanElixir counts the consecutive elixir-colored pixels along the scan
// axis, stopping at the first mismatch.
func ScanElixir(frame image.Image, scan config.ElixirScan) int {
	n := 0
	pt := scan.Start.Pt()
	for i := 0; i < scan.Slots && n < MaxElixir; i++ {
		if !perception.PixelMatches(frame, pt, scan.Color, scan.Tolerance) {
			break
		}
		n++
		pt.X += scan.Step
	}
	return n
}

// Update refreshes the state from a full screen frame and returns the
// battle result seen on it.
func (e *Environment) Update(ctx context.Context, frame image.Image) types.BattleResult {
	elixir := ScanElixir(frame, e.screen.Elixir)
	game := perception.Crop(frame, e.screen.Game.Rect())

	result := e.battle.DetectEnd(ctx, game)

	timer, outcome := e.readTimer(ctx, game)
	dets := e.detect(ctx, game)
	hand := e.findHand(game)

	// the play again button lives outside the game region
	if raw := e.battle.DetectEnd(ctx, frame); raw.Terminal() {
		result = raw
	}

	e.mu.Lock()
	if e.state.Elixir != elixir {
		e.log.WithFields(logrus.Fields{"from": e.state.Elixir, "to": elixir}).Debug("elixir changed")
	}
	e.state.Elixir = elixir
	if outcome == Parsed {
		e.state.Timer = timer
		e.state.TimerKnown = true
	}
	e.state.Detections = dets
	for _, d := range dets {
		switch {
		case d.Class == perception.AllyKingTower || d.Class == perception.AllyPrincessTower:
			e.state.Score++
		case d.Class == perception.EnemyKingTower || d.Class == perception.EnemyPrincessTower:
			e.state.Score--
		}
	}
	e.state.Hand = hand
	if result.Terminal() {
		e.state.InBattle = false
	}
	e.mu.Unlock()

	return result
}

func (e *Environment) readTimer(ctx context.Context, game image.Image) (int, ReadOutcome) {
	text, err := e.perc.Reader.Read(ctx, perception.Crop(game, e.screen.RegionToScreen(e.screen.Timer)))
	if err != nil {
		e.log.WithError(err).Debug("timer unreadable, keeping previous value")
		return 0, Unchanged
	}
	v, outcome := ParseTimer(text)
	if outcome == Unchanged {
		e.log.WithField("text", text).Debug("timer unparsable, keeping previous value")
	}
	return v, outcome
}

func (e *Environment) detect(ctx context.Context, game image.Image) []perception.Detection {
	dets, err := e.perc.Detector.Detect(ctx, game)
	if err != nil {
		e.log.WithError(err).Debug("detection failed, assuming an empty field")
		return nil
	}
	return dets
}

// findHand matches every deck card against the hand bar, or the whole game
// area when no bar is configured. Slots are ordered left to right as they
// appear on screen.
func (e *Environment) findHand(game image.Image) []actions.HandSlot {
	bar := game
	if !e.screen.HandBar.Rect().Empty() {
		bar = perception.Crop(game, e.screen.RegionToScreen(e.screen.HandBar))
	}
	hand := make([]actions.HandSlot, 0, actions.MaxHandSize)
	for _, card := range e.deck {
		m, ok := e.perc.Matcher.Find(card.Name, bar)
		if !ok {
			continue
		}
		hand = append(hand, actions.HandSlot{Card: card, Anchor: m.Center()})
	}
	sort.SliceStable(hand, func(i, j int) bool {
		return hand[i].Anchor.X < hand[j].Anchor.X
	})
	if len(hand) > actions.MaxHandSize {
		e.log.WithField("matched", len(hand)).Debug("more cards matched than hand slots")
		hand = hand[:actions.MaxHandSize]
	}
	return hand
}

// ResetState puts the state back to the start of a battle.
func (e *Environment) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = GameState{InBattle: true}
}

// ClearPrevious drops the stored feature snapshot so the next reward is
// the boundary reward.
func (e *Environment) ClearPrevious() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Prev = nil
}

// StartNewBattle resets the state and starts the next battle.
func (e *Environment) StartNewBattle(ctx context.Context) error {
	e.ResetState()
	return e.battle.StartBattle(ctx)
}

// BattleEnded checks a full screen frame for a terminal result.
func (e *Environment) BattleEnded(ctx context.Context, frame image.Image) types.BattleResult {
	result := e.battle.DetectEnd(ctx, frame)
	if result.Terminal() {
		e.mu.Lock()
		e.state.InBattle = false
		e.mu.Unlock()
	}
	return result
}

func (e *Environment) Features() Features {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states.ExtractFeatures(e.state.Elixir, e.state.Detections)
}

func (e *Environment) Observation() types.Observation {
	return e.states.Encode(e.Features())
}

// Reward scores the transition from the stored snapshot to the current
// features and stores the current one. The first call after a clear only
// stores the snapshot and returns zero.
func (e *Environment) Reward(action int, result types.BattleResult) float64 {
	curr := e.Features()

	e.mu.Lock()
	prev := e.state.Prev
	e.state.Prev = &curr
	e.mu.Unlock()

	if prev == nil {
		return 0
	}
	b := e.reward.Breakdown(*prev, curr, action, result)
	e.log.WithFields(logrus.Fields{
		"terminal":        b.Terminal,
		"tower_destroyed": b.TowerDestroyed,
		"tower_lost":      b.TowerLost,
		"elixir":          b.Elixir,
		"time":            b.Time,
	}).Debug("reward")
	return b.Total()
}

// Hand returns a copy of the current hand.
func (e *Environment) Hand() []actions.HandSlot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]actions.HandSlot(nil), e.state.Hand...)
}

func (e *Environment) Elixir() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Elixir
}

// Snapshot returns a deep copy of the state.
func (e *Environment) Snapshot() GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.state
	s.Detections = append([]perception.Detection(nil), e.state.Detections...)
	s.Hand = append([]actions.HandSlot(nil), e.state.Hand...)
	if e.state.Prev != nil {
		prev := *e.state.Prev
		s.Prev = &prev
	}
	return s
}
