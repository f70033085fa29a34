package perception

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patch returns a w×h image filled with pseudo random gray levels.
func patch(w, h int) *image.Gray {
	return noise(w, h, 12345)
}

func noise(w, h int, seed uint32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		seed = seed*1103515245 + 12345
		img.Pix[i] = uint8(seed >> 16)
	}
	return img
}

func frameWith(p *image.Gray, at image.Point) *image.Gray {
	frame := image.NewGray(image.Rect(0, 0, 40, 30))
	paste(frame, p, at)
	return frame
}

func paste(frame *image.Gray, p *image.Gray, at image.Point) {
	b := p.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			frame.SetGray(at.X+x, at.Y+y, color.Gray{Y: p.GrayAt(x, y).Y})
		}
	}
}

func rgba(g *image.Gray) *image.RGBA {
	out := image.NewRGBA(g.Bounds())
	for i, v := range g.Pix {
		out.Pix[4*i], out.Pix[4*i+1], out.Pix[4*i+2], out.Pix[4*i+3] = v, v, v, 0xff
	}
	return out
}

func TestNCCFindsTemplate(t *testing.T) {
	tpl := patch(6, 5)
	frame := frameWith(tpl, image.Pt(12, 8))

	m := NewNCCMatcher(0.8, nil)
	m.Add("battle", tpl)

	match, ok := m.Find("battle", frame)
	require.True(t, ok)
	assert.Equal(t, image.Pt(12, 8), match.TopLeft)
	assert.Equal(t, image.Pt(18, 13), match.BottomRight)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
}

func TestNCCFindOnCroppedFrame(t *testing.T) {
	tpl := patch(6, 5)
	frame := frameWith(tpl, image.Pt(20, 15))

	m := NewNCCMatcher(0.8, nil)
	m.Add("ok", tpl)

	match, ok := m.Find("ok", Crop(frame, image.Rect(10, 10, 40, 30)))
	require.True(t, ok)
	assert.Equal(t, image.Pt(20, 15), match.TopLeft)
}

func TestNCCMissingTemplate(t *testing.T) {
	m := NewNCCMatcher(0.8, nil)
	_, ok := m.Find("play_again", image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.False(t, ok)
	assert.False(t, m.Has("play_again"))

	m.Add("play_again", patch(4, 4))
	_, ok = m.Find("play_again", image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.False(t, ok)
}

func TestNCCLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knight.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, patch(5, 5)))
	require.NoError(t, f.Close())

	m := NewNCCMatcher(0.8, nil)
	require.NoError(t, m.LoadFile("knight", path))
	assert.True(t, m.Has("knight"))

	err = m.LoadFile("log", filepath.Join(dir, "log.png"))
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestNCCFindsTemplateInLargeFrame(t *testing.T) {
	tpl := noise(40, 40, 7)
	g := noise(450, 300, 99)
	paste(g, tpl, image.Pt(173, 211))
	frame := rgba(g)

	m := NewNCCMatcher(0.8, nil)
	m.Add("archers", tpl)

	match, ok := m.Find("archers", frame)
	require.True(t, ok)
	assert.Equal(t, image.Pt(173, 211), match.TopLeft)
	assert.Equal(t, image.Pt(213, 251), match.BottomRight)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
}

func TestNCCReturnsFirstMatchInRasterOrder(t *testing.T) {
	tpl := noise(12, 9, 3)
	frame := noise(200, 120, 4)
	paste(frame, tpl, image.Pt(10, 80))
	paste(frame, tpl, image.Pt(150, 31))

	m := NewNCCMatcher(0.9, nil)
	m.Add("giant", tpl)

	match, ok := m.Find("giant", frame)
	require.True(t, ok)
	assert.Equal(t, image.Pt(150, 31), match.TopLeft)
}

func TestNCCSkipsUniformWindows(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 60, 40))
	for i := range frame.Pix {
		frame.Pix[i] = 128
	}
	m := NewNCCMatcher(0.1, nil)
	m.Add("minions", patch(8, 8))

	_, ok := m.Find("minions", frame)
	assert.False(t, ok)
}

func TestNCCMissOnGameSizedFrame(t *testing.T) {
	frame := rgba(noise(450, 1020, 21))
	m := NewNCCMatcher(0.8, nil)
	m.Add("fireball", noise(60, 70, 5))
	m.Add("musketeer", noise(55, 65, 6))

	start := time.Now()
	_, ok := m.Find("fireball", frame)
	assert.False(t, ok)
	_, ok = m.Find("musketeer", frame)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNCCReusesPreparedFrame(t *testing.T) {
	tpl := patch(6, 5)
	frame := frameWith(tpl, image.Pt(12, 8))

	m := NewNCCMatcher(0.8, nil)
	m.Add("a", tpl)
	m.Add("b", noise(5, 5, 77))

	_, ok := m.Find("a", frame)
	require.True(t, ok)
	prepared := m.cached
	require.NotNil(t, prepared)

	m.Find("b", frame)
	assert.Same(t, prepared, m.cached)

	other := frameWith(tpl, image.Pt(2, 2))
	match, ok := m.Find("a", other)
	require.True(t, ok)
	assert.Equal(t, image.Pt(2, 2), match.TopLeft)
	assert.NotSame(t, prepared, m.cached)
}

func TestFFTSize(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 1, 7: 8, 450: 450, 1020: 1024, 121: 125} {
		assert.Equal(t, want, fftSize(n), "n=%d", n)
	}
}
