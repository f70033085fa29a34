package perception

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
	"gonum.org/v1/gonum/floats"
)

type template struct {
	w, h   int
	values []float64 // mean subtracted
	norm   float64
}

// NCCMatcher is a TemplateMatcher using normalized cross-correlation on
// grayscale pixels. Templates are registered by name.
type NCCMatcher struct {
	threshold float64
	log       *logrus.Entry

	mu        sync.RWMutex
	templates map[string]*template

	cacheMu     sync.Mutex
	cachedImage image.Image
	cached      *grayFrame
}

var _ TemplateMatcher = &NCCMatcher{}

func NewNCCMatcher(threshold float64, log *logrus.Entry) *NCCMatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &NCCMatcher{
		threshold: threshold,
		log:       log,
		templates: make(map[string]*template),
	}
}

// Add registers img under name, replacing any previous template.
func (m *NCCMatcher) Add(name string, img image.Image) {
	values, b := gray(img)
	mean := floats.Sum(values) / float64(len(values))
	floats.AddConst(-mean, values)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[name] = &template{
		w:      b.Dx(),
		h:      b.Dy(),
		values: values,
		norm:   floats.Norm(values, 2),
	}
}

// LoadFile reads an image file and registers it under name.
func (m *NCCMatcher) LoadFile(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrTemplateNotFound, name, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding template %s: %w", path, err)
	}
	m.Add(name, img)
	return nil
}

func (m *NCCMatcher) Has(name string) bool {
	_, err := m.lookup(name)
	return err == nil
}

func (m *NCCMatcher) lookup(name string) (*template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, nil
}

// Find returns the first window, in raster order, whose correlation with
// the template reaches the threshold. Correlations for every window come
// from one FFT pass over the prepared frame; windows that clear the
// threshold are rescored exactly before being returned.
func (m *NCCMatcher) Find(name string, frame image.Image) (Match, bool) {
	t, err := m.lookup(name)
	if err != nil {
		m.log.WithError(err).Debug("skipping match")
		return Match{}, false
	}
	b := frame.Bounds()
	if t.w > b.Dx() || t.h > b.Dy() || t.norm == 0 {
		return Match{}, false
	}
	g := m.prepare(frame)
	corr := g.correlate(t)

	n := int64(t.w * t.h)
	for y := 0; y+t.h <= g.h; y++ {
		for x := 0; x+t.w <= g.w; x++ {
			s, q := g.window(x, y, t.w, t.h)
			v := n*q - s*s
			if v <= 0 {
				continue
			}
			denom := math.Sqrt(float64(v)/float64(n)) * t.norm
			if corr[y*g.pw+x]/denom < m.threshold-fftSlack {
				continue
			}
			score := g.dot(x, y, t) / denom
			if score >= m.threshold && !math.IsNaN(score) {
				tl := image.Pt(g.bounds.Min.X+x, g.bounds.Min.Y+y)
				return Match{
					TopLeft:     tl,
					BottomRight: tl.Add(image.Pt(t.w, t.h)),
					Score:       score,
				}, true
			}
		}
	}
	return Match{}, false
}

// fftSlack absorbs floating point error in the transformed correlation.
const fftSlack = 1e-3

// prepare returns the grayscale, integral and spectral form of frame,
// reusing the last one when the same image is searched again. Frames must
// not be modified after they are searched.
func (m *NCCMatcher) prepare(frame image.Image) *grayFrame {
	cacheable := reflect.TypeOf(frame).Comparable()

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if cacheable && m.cached != nil && m.cachedImage == frame && m.cached.bounds == frame.Bounds() {
		return m.cached
	}
	g := newGrayFrame(frame)
	if cacheable {
		m.cachedImage, m.cached = frame, g
	}
	return g
}
