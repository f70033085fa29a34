package perception

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge(t *testing.T) {
	var clicks []clickRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/screenshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, image.NewRGBA(image.Rect(0, 0, 64, 48)))
	})
	mux.HandleFunc("/click", func(w http.ResponseWriter, r *http.Request) {
		var c clickRequest
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		clicks = append(clicks, c)
	})
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		img, err := png.Decode(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		text := "Winner!"
		if img.Bounds().Dx() != 10 {
			text = ""
		}
		json.NewEncoder(w).Encode(ocrResponse{Text: text})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := NewBridge(srv.URL+"/", nil)
	ctx := context.Background()

	frame, err := b.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, frame.Bounds().Dx())

	require.NoError(t, b.Place(ctx, image.Pt(1, 2), image.Pt(3, 4)))
	assert.Equal(t, []clickRequest{{X: 1, Y: 2}, {X: 3, Y: 4}}, clicks)

	text, err := b.Read(ctx, image.NewRGBA(image.Rect(5, 5, 15, 9)))
	require.NoError(t, err)
	assert.Equal(t, "Winner!", text)
}

func TestBridgeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "emulator offline")
	}))
	defer srv.Close()

	_, err := NewBridge(srv.URL, nil).Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emulator offline")
}
