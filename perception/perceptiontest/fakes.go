// Package perceptiontest provides scripted perception collaborators for
// tests of the control loop.
package perceptiontest

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/perception"
)

// Blank returns an opaque black frame of the given size.
func Blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// PaintElixir colors the first n positions of the elixir scan.
func PaintElixir(img *image.RGBA, scan config.ElixirScan, n int) {
	c := color.RGBA{R: scan.Color.R, G: scan.Color.G, B: scan.Color.B, A: 0xff}
	for i := 0; i < n && i < scan.Slots; i++ {
		img.Set(scan.Start.X+i*scan.Step, scan.Start.Y, c)
	}
}

// Screen replays frames in order and keeps returning the last one.
type Screen struct {
	mu     sync.Mutex
	frames []image.Image
	Err    error
	calls  int
}

var _ perception.Capturer = &Screen{}

func NewScreen(frames ...image.Image) *Screen {
	return &Screen{frames: frames}
}

func (s *Screen) Push(frames ...image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

func (s *Screen) Capture(_ context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.frames) == 0 {
		return Blank(1920, 1080), nil
	}
	f := s.frames[0]
	if len(s.frames) > 1 {
		s.frames = s.frames[1:]
	}
	return f, nil
}

func (s *Screen) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Matcher reports templates as visible or hidden. A scripted sequence is
// consumed one lookup at a time before falling back to the fixed state.
type Matcher struct {
	mu      sync.Mutex
	visible map[string]bool
	script  map[string][]bool
	at      map[string]image.Point
	calls   map[string]int
	regions map[string]image.Rectangle
}

var _ perception.TemplateMatcher = &Matcher{}

func NewMatcher() *Matcher {
	return &Matcher{
		visible: make(map[string]bool),
		script:  make(map[string][]bool),
		at:      make(map[string]image.Point),
		calls:   make(map[string]int),
		regions: make(map[string]image.Rectangle),
	}
}

func (m *Matcher) Show(name string) { m.set(name, true) }
func (m *Matcher) Hide(name string) { m.set(name, false) }

func (m *Matcher) set(name string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible[name] = v
}

// Script queues the next results for name.
func (m *Matcher) Script(name string, seq ...bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[name] = append(m.script[name], seq...)
}

// At sets the top-left corner reported for name.
func (m *Matcher) At(name string, pt image.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at[name] = pt
}

func (m *Matcher) Find(name string, frame image.Image) (perception.Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	m.regions[name] = frame.Bounds()

	found := m.visible[name]
	if seq := m.script[name]; len(seq) > 0 {
		found = seq[0]
		m.script[name] = seq[1:]
	}
	if !found {
		return perception.Match{}, false
	}
	tl := m.at[name]
	return perception.Match{TopLeft: tl, BottomRight: tl.Add(image.Pt(20, 20)), Score: 1}, true
}

func (m *Matcher) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Region returns the bounds of the last frame name was searched in.
func (m *Matcher) Region(name string) image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions[name]
}

// Reader answers OCR requests by the bounds of the region read.
type Reader struct {
	mu    sync.Mutex
	texts map[image.Rectangle]string
	Err   error
}

var _ perception.TextReader = &Reader{}

func NewReader() *Reader {
	return &Reader{texts: make(map[image.Rectangle]string)}
}

func (r *Reader) Set(region image.Rectangle, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[region] = text
}

func (r *Reader) Read(_ context.Context, region image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.texts[region.Bounds()], nil
}

// Detector returns queued detection batches, repeating the last one.
type Detector struct {
	mu      sync.Mutex
	batches [][]perception.Detection
	Err     error
}

var _ perception.ObjectDetector = &Detector{}

func NewDetector(batches ...[]perception.Detection) *Detector {
	return &Detector{batches: batches}
}

func (d *Detector) Push(batches ...[]perception.Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batches...)
}

func (d *Detector) Detect(_ context.Context, _ image.Image) ([]perception.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	if len(d.batches) == 0 {
		return nil, nil
	}
	b := d.batches[0]
	if len(d.batches) > 1 {
		d.batches = d.batches[1:]
	}
	return b, nil
}

// Placement is one recorded Place call.
type Placement struct {
	Card   image.Point
	Target image.Point
}

// Hands records clicks and placements.
type Hands struct {
	mu         sync.Mutex
	Clicks     []image.Point
	Placements []Placement
	Err        error
	// OnClick is invoked after every click, e.g. to hide a button.
	OnClick func(image.Point)
}

var (
	_ perception.Clicker = &Hands{}
	_ perception.Placer  = &Hands{}
)

func (h *Hands) Click(_ context.Context, pt image.Point) error {
	h.mu.Lock()
	if h.Err != nil {
		h.mu.Unlock()
		return h.Err
	}
	h.Clicks = append(h.Clicks, pt)
	cb := h.OnClick
	h.mu.Unlock()
	if cb != nil {
		cb(pt)
	}
	return nil
}

func (h *Hands) Place(_ context.Context, card, target image.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Placements = append(h.Placements, Placement{Card: card, Target: target})
	return nil
}

func (h *Hands) PlacementCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Placements)
}
