package royale

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/types"
	"github.com/zeu5/royale-rl/util"
)

var ErrBattleStart = errors.New("unable to start battle")

// Names the lifecycle templates are registered under.
const (
	TemplateBattle    = "battle_button"
	TemplatePlayAgain = "play_again"
	TemplateOK        = "ok_button"
	TemplateCancel    = "cancel_button"
)

type BattleState int

const (
	NotInBattle BattleState = iota
	AwaitingStart
	InBattle
	Ended
)

func (s BattleState) String() string {
	switch s {
	case NotInBattle:
		return "not_in_battle"
	case AwaitingStart:
		return "awaiting_start"
	case InBattle:
		return "in_battle"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// BattleDetector tracks the battle lifecycle and drives the transition
// into the next battle.
type BattleDetector struct {
	screen  config.Screen
	timing  config.Timing
	capture perception.Capturer
	matcher perception.TemplateMatcher
	reader  perception.TextReader
	clicker perception.Clicker
	clock   util.Clock
	log     *logrus.Entry

	mu     sync.Mutex
	state  BattleState
	result types.BattleResult
}

func NewBattleDetector(
	screen config.Screen,
	timing config.Timing,
	capture perception.Capturer,
	matcher perception.TemplateMatcher,
	reader perception.TextReader,
	clicker perception.Clicker,
	clock util.Clock,
	log *logrus.Entry,
) *BattleDetector {
	if log == nil {
		log = logger.Discard()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &BattleDetector{
		screen:  screen,
		timing:  timing,
		capture: capture,
		matcher: matcher,
		reader:  reader,
		clicker: clicker,
		clock:   clock,
		log:     log,
		state:   NotInBattle,
	}
}

func (b *BattleDetector) State() BattleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Result is the stored terminal result, Ongoing unless Ended.
func (b *BattleDetector) Result() types.BattleResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

func (b *BattleDetector) setState(s BattleState) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	if prev != s {
		b.log.WithFields(logrus.Fields{"from": prev, "to": s}).Debug("battle state")
	}
}

// Acknowledge consumes a terminal result, moving back to NotInBattle.
func (b *BattleDetector) Acknowledge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = NotInBattle
	b.result = types.Ongoing
}

// StartBattle presses the play again button, or dismisses the result
// dialog and presses the battle button, until the pressed button leaves
// the screen. It gives up with ErrBattleStart after the configured number
// of attempts.
func (b *BattleDetector) StartBattle(ctx context.Context) error {
	b.Acknowledge()

	for attempt := 1; attempt <= b.timing.StartAttempts; attempt++ {
		log := b.log.WithField("attempt", attempt)

		started, err := b.attempt(ctx, log)
		if err != nil {
			b.setState(NotInBattle)
			return err
		}
		if started {
			b.setState(InBattle)
			log.Info("battle started")
			return nil
		}
		b.setState(NotInBattle)
		if err := b.clock.Sleep(ctx, b.timing.AttemptBackoff); err != nil {
			return err
		}
	}
	b.log.Errorf("no battle after %d attempts", b.timing.StartAttempts)
	return fmt.Errorf("%w: no battle after %d attempts", ErrBattleStart, b.timing.StartAttempts)
}

// attempt reports whether a battle started. Errors are returned only when
// ctx is done.
func (b *BattleDetector) attempt(ctx context.Context, log *logrus.Entry) (bool, error) {
	frame, err := b.capture.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.WithError(err).Warn("capture failed")
		return false, nil
	}

	// post battle flow
	if pressed, err := b.press(ctx, TemplatePlayAgain, frame); err != nil {
		return false, err
	} else if pressed {
		log.Info("pressed play again")
		started, err := b.waitForStart(ctx, TemplatePlayAgain)
		if started || err != nil {
			return started, err
		}
		if frame, err = b.capture.Capture(ctx); err != nil {
			return false, ctx.Err()
		}
	}

	// first battle flow, possibly behind a result dialog
	if pressed, err := b.press(ctx, TemplateOK, frame); err != nil {
		return false, err
	} else if pressed {
		log.Info("dismissed dialog")
		if err := b.clock.Sleep(ctx, b.timing.DismissSettle); err != nil {
			return false, err
		}
		if frame, err = b.capture.Capture(ctx); err != nil {
			return false, ctx.Err()
		}
	}
	if pressed, err := b.press(ctx, TemplateBattle, frame); err != nil {
		return false, err
	} else if pressed {
		log.Info("pressed battle")
		return b.waitForStart(ctx, TemplateBattle)
	}
	return false, nil
}

// press clicks the center of the named template if it is on screen.
func (b *BattleDetector) press(ctx context.Context, name string, frame image.Image) (bool, error) {
	m, ok := b.matcher.Find(name, frame)
	if !ok {
		return false, nil
	}
	if err := b.clicker.Click(ctx, m.Center()); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		b.log.WithError(err).WithField("template", name).Warn("click failed")
		return false, nil
	}
	b.setState(AwaitingStart)
	return true, nil
}

// waitForStart polls until the pressed button disappears, then lets the
// battle scene settle.
func (b *BattleDetector) waitForStart(ctx context.Context, button string) (bool, error) {
	deadline := b.clock.Now().Add(b.timing.StartTimeout)
	for b.clock.Now().Before(deadline) {
		frame, err := b.capture.Capture(ctx)
		if err == nil {
			if _, visible := b.matcher.Find(button, frame); !visible {
				if err := b.clock.Sleep(ctx, b.timing.StartSettle); err != nil {
					return false, err
				}
				return true, nil
			}
		} else if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err := b.clock.Sleep(ctx, b.timing.StartPoll); err != nil {
			return false, err
		}
	}
	b.log.WithField("button", button).Warn("battle did not start before timeout")
	return false, nil
}

// DetectEnd checks frame for a battle result. A terminal result moves the
// detector to Ended and is returned by every later call until Acknowledge.
// The banners are read before the generic dialog; when both banners read
// as winner the ally banner takes precedence.
func (b *BattleDetector) DetectEnd(ctx context.Context, frame image.Image) types.BattleResult {
	b.mu.Lock()
	if b.state == Ended {
		r := b.result
		b.mu.Unlock()
		return r
	}
	b.mu.Unlock()

	result := b.detect(ctx, frame)
	if result.Terminal() {
		b.mu.Lock()
		b.state = Ended
		b.result = result
		b.mu.Unlock()
		b.log.WithField("result", result).Info("battle ended")
	}
	return result
}

// IsBattleActive is true when no end screen and no cancel button are
// visible. It does not change the detector state.
func (b *BattleDetector) IsBattleActive(ctx context.Context, frame image.Image) bool {
	if b.State() == Ended {
		return false
	}
	if b.detect(ctx, frame).Terminal() {
		return false
	}
	_, cancel := b.matcher.Find(TemplateCancel, frame)
	return !cancel
}

func (b *BattleDetector) detect(ctx context.Context, frame image.Image) types.BattleResult {
	if b.bannerSays(ctx, frame, b.screen.AllyBanner) {
		return types.Victory
	}
	if b.bannerSays(ctx, frame, b.screen.EnemyBanner) {
		return types.Defeat
	}
	if _, ok := b.matcher.Find(TemplateOK, frame); ok {
		// dialog without a winner banner
		return types.Draw
	}
	return types.Ongoing
}

func (b *BattleDetector) bannerSays(ctx context.Context, frame image.Image, region config.Rect) bool {
	r := b.screen.RegionToScreen(region)
	if !r.Overlaps(frame.Bounds()) {
		return false
	}
	text, err := b.reader.Read(ctx, perception.Crop(frame, r))
	if err != nil {
		b.log.WithError(err).Debug("banner unreadable")
		return false
	}
	return strings.TrimSpace(text) == b.screen.WinnerText
}
