package royale

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/perception/perceptiontest"
	"github.com/zeu5/royale-rl/types"
)

func dets(classes ...perception.Class) []perception.Detection {
	out := make([]perception.Detection, len(classes))
	for i, c := range classes {
		out[i] = perception.Detection{X: 320, Y: 320, Width: 32, Height: 32, Class: c, Confidence: 0.9}
	}
	return out
}

func TestExtractFeaturesEmpty(t *testing.T) {
	s := NewStateManager(640)
	f := s.ExtractFeatures(0, nil)
	assert.Equal(t, Features{}, f)
	assert.Equal(t, types.Observation{}, s.Encode(f))
}

func TestExtractFeatures(t *testing.T) {
	s := NewStateManager(640)
	f := s.ExtractFeatures(7, dets(
		perception.AllyKingTower, perception.AllyPrincessTower, perception.AllyPrincessTower,
		perception.EnemyKingTower, perception.EnemyPrincessTower,
		perception.AllyTroop, perception.EnemyTroop, perception.EnemyTroop,
	))
	assert.Equal(t, Features{Elixir: 7, AllyTroops: 1, EnemyTroops: 2, AllyTowers: 3, EnemyTowers: 2}, f)

	obs := s.Encode(f)
	assert.InDelta(t, 0.7, obs[0], 1e-9)
	assert.InDelta(t, 0.05, obs[1], 1e-9)
	assert.InDelta(t, 0.1, obs[2], 1e-9)
	assert.InDelta(t, 1.0, obs[3], 1e-9)
	assert.InDelta(t, 2.0/3.0, obs[4], 1e-9)
}

func TestEncodeClamps(t *testing.T) {
	s := NewStateManager(640)
	obs := s.Encode(Features{Elixir: 12, AllyTroops: 45, EnemyTroops: 21, AllyTowers: 5, EnemyTowers: 4})
	for i, v := range obs {
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, 1.0, "index %d", i)
	}
	assert.Equal(t, 1.0, obs[1])
	assert.Equal(t, 1.0, obs[2])
}

func TestNormalizeDetections(t *testing.T) {
	s := NewStateManager(640)
	n := s.NormalizeDetections(dets(perception.EnemyTroop))
	assert.Equal(t, []NormalizedDetection{{X: 0.5, Y: 0.5, Width: 0.05, Height: 0.05, Class: perception.EnemyTroop}}, n)
	assert.Empty(t, s.NormalizeDetections(nil))
}

func TestParseTimer(t *testing.T) {
	cases := []struct {
		text    string
		want    int
		outcome ReadOutcome
	}{
		{"2:15", 135, Parsed},
		{" 0:59\n", 59, Parsed},
		{"1 : 05", 65, Parsed},
		{"6:00", 360, Parsed},
		{"6:01", 0, Unchanged},
		{"215", 0, Unchanged},
		{"1:2:3", 0, Unchanged},
		{"a:15", 0, Unchanged},
		{"", 0, Unchanged},
		{"-1:30", 0, Unchanged},
	}
	for _, c := range cases {
		v, outcome := ParseTimer(c.text)
		assert.Equal(t, c.outcome, outcome, "text %q", c.text)
		assert.Equal(t, c.want, v, "text %q", c.text)
	}
}

func TestScanElixir(t *testing.T) {
	scan := config.DefaultScreen().Elixir
	for _, n := range []int{0, 4, 10} {
		f := perceptiontest.Blank(1920, 1080)
		perceptiontest.PaintElixir(f, scan, n)
		assert.Equal(t, n, ScanElixir(f, scan))
	}

	// a gap stops the scan
	f := perceptiontest.Blank(1920, 1080)
	perceptiontest.PaintElixir(f, scan, 6)
	f.Set(scan.Start.X+2*scan.Step, scan.Start.Y, color.Black)
	assert.Equal(t, 2, ScanElixir(f, scan))
}
