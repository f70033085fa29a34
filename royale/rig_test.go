package royale

import (
	"image"
	"testing"
	"time"

	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/perception/perceptiontest"
	"github.com/zeu5/royale-rl/util"
)

// rig wires a controller to scripted perception.
type rig struct {
	cfg      *config.Config
	screen   *perceptiontest.Screen
	matcher  *perceptiontest.Matcher
	reader   *perceptiontest.Reader
	detector *perceptiontest.Detector
	hands    *perceptiontest.Hands
	clock    *util.FakeClock
	ctrl     *Controller
}

func newRig(t *testing.T, elixir int) *rig {
	t.Helper()
	cfg := config.Default()
	r := &rig{
		cfg:      cfg,
		matcher:  perceptiontest.NewMatcher(),
		reader:   perceptiontest.NewReader(),
		detector: perceptiontest.NewDetector(),
		hands:    &perceptiontest.Hands{},
		clock:    util.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	r.screen = perceptiontest.NewScreen(r.frame(elixir))
	r.ctrl = New(cfg, r.perception(), r.clock, nil)
	return r
}

func (r *rig) perception() Perception {
	return Perception{
		Capturer: r.screen,
		Matcher:  r.matcher,
		Reader:   r.reader,
		Detector: r.detector,
		Clicker:  r.hands,
		Placer:   r.hands,
	}
}

func (r *rig) frame(elixir int) *image.RGBA {
	f := perceptiontest.Blank(1920, 1080)
	perceptiontest.PaintElixir(f, r.cfg.Screen.Elixir, elixir)
	return f
}

// battleReady makes the battle button visible for exactly one lookup.
func (r *rig) battleReady() {
	r.matcher.Script(TemplateBattle, true)
}

func (r *rig) allyBanner() image.Rectangle {
	return r.cfg.Screen.RegionToScreen(r.cfg.Screen.AllyBanner)
}

func (r *rig) enemyBanner() image.Rectangle {
	return r.cfg.Screen.RegionToScreen(r.cfg.Screen.EnemyBanner)
}

func (r *rig) detectorOnly() *BattleDetector {
	return NewBattleDetector(r.cfg.Screen, r.cfg.Timing, r.screen, r.matcher, r.reader, r.hands, r.clock, nil)
}
