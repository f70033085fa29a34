package perception

import (
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDetector(t *testing.T) {
	var gotSize image.Point
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		bs, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		img, err := jpeg.Decode(strings.NewReader(string(bs)))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotSize = img.Bounds().Size()
		io.WriteString(w, `{"predictions":[
			{"x":320,"y":100,"width":40,"height":60,"class":"enemy_king","class_id":3,"confidence":0.91},
			{"x":200,"y":500,"width":20,"height":20,"class":"ally_troop","class_id":2,"confidence":0.55}
		]}`)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, "cr-model/3", "secret", 640, nil)
	dets, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 450, 1020)))
	require.NoError(t, err)

	assert.Equal(t, image.Pt(640, 640), gotSize)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/cr-model/3", gotPath)
	require.Len(t, dets, 2)
	assert.Equal(t, EnemyKingTower, dets[0].Class)
	assert.Equal(t, AllyTroop, dets[1].Class)
	assert.Equal(t, 0.55, dets[1].Confidence)
}

func TestRescale(t *testing.T) {
	d := Detection{X: 320, Y: 320, Width: 64, Height: 64}
	box := Rescale(d, 640, image.Rect(100, 0, 420, 1280))
	assert.Equal(t, image.Rect(244, 576, 276, 704), box)
}
