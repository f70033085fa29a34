package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
	"golang.org/x/image/draw"
)

// HTTPDetector runs the hosted object-detection model. Frames are resized
// to a square of Size pixels before upload, so returned coordinates live
// in that square.
type HTTPDetector struct {
	Size int

	endpoint string
	apiKey   string
	client   *http.Client
	log      *logrus.Entry
}

var _ ObjectDetector = &HTTPDetector{}

func NewHTTPDetector(baseURL, model, apiKey string, size int, log *logrus.Entry) *HTTPDetector {
	if log == nil {
		log = logger.Discard()
	}
	return &HTTPDetector{
		Size:     size,
		endpoint: strings.TrimRight(baseURL, "/") + "/" + strings.Trim(model, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 20 * time.Second},
		log:      log,
	}
}

type prediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ClassID    int     `json:"class_id"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type inferResponse struct {
	Predictions []prediction `json:"predictions"`
}

func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	body, err := d.encode(frame)
	if err != nil {
		return nil, err
	}

	u := d.endpoint
	if d.apiKey != "" {
		u += "?api_key=" + url.QueryEscape(d.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect: model returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect: decoding response: %w", err)
	}
	dets := make([]Detection, len(out.Predictions))
	for i, p := range out.Predictions {
		dets[i] = Detection{
			X:          p.X,
			Y:          p.Y,
			Width:      p.Width,
			Height:     p.Height,
			Class:      Class(p.ClassID),
			Confidence: p.Confidence,
		}
	}
	d.log.WithFields(logrus.Fields{
		"detections": len(dets),
		"took":       time.Since(start),
	}).Debug("inference done")
	return dets, nil
}

// encode resizes the frame to the model input and returns it as base64 JPEG.
func (d *HTTPDetector) encode(frame image.Image) (io.Reader, error) {
	dst := image.NewRGBA(image.Rect(0, 0, d.Size, d.Size))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	raw := &bytes.Buffer{}
	if err := jpeg.Encode(raw, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("detect: encoding frame: %w", err)
	}
	return strings.NewReader(base64.StdEncoding.EncodeToString(raw.Bytes())), nil
}

// Rescale maps a detection from the size×size model frame back onto the
// region it was computed from, returning the box corners.
func Rescale(d Detection, size int, region image.Rectangle) image.Rectangle {
	sx := float64(region.Dx()) / float64(size)
	sy := float64(region.Dy()) / float64(size)
	cx := d.X * sx
	cy := d.Y * sy
	w := d.Width * sx
	h := d.Height * sy
	return image.Rect(
		region.Min.X+int(cx-w/2), region.Min.Y+int(cy-h/2),
		region.Min.X+int(cx+w/2), region.Min.Y+int(cy+h/2),
	)
}
