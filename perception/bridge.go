package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
)

// Bridge talks to the device sidecar that owns the emulator window. It
// serves screenshots, performs clicks and runs OCR.
//
//	GET  /screenshot -> image/png
//	POST /click      {"x":..,"y":..}
//	POST /ocr        image/png body -> {"text":".."}
type Bridge struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

var (
	_ Capturer   = &Bridge{}
	_ Clicker    = &Bridge{}
	_ Placer     = &Bridge{}
	_ TextReader = &Bridge{}
)

func NewBridge(baseURL string, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (b *Bridge) Capture(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/screenshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer resp.Body.Close()

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("capture: decoding screenshot: %w", err)
	}
	return img, nil
}

type clickRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (b *Bridge) Click(ctx context.Context, pt image.Point) error {
	body, err := json.Marshal(clickRequest{X: pt.X, Y: pt.Y})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/click", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.do(req)
	if err != nil {
		return fmt.Errorf("click %v: %w", pt, err)
	}
	resp.Body.Close()
	b.log.WithFields(logrus.Fields{"x": pt.X, "y": pt.Y}).Debug("clicked")
	return nil
}

func (b *Bridge) Place(ctx context.Context, card, target image.Point) error {
	if err := b.Click(ctx, card); err != nil {
		return err
	}
	return b.Click(ctx, target)
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (b *Bridge) Read(ctx context.Context, region image.Image) (string, error) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, region); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/ocr", buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := b.do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	defer resp.Body.Close()

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ocr: decoding response: %w", err)
	}
	return out.Text, nil
}

func (b *Bridge) do(req *http.Request) (*http.Response, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
