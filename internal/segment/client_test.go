package segment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyerforge-ai/internal/flyer"
)

var (
	pngHeader  = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46, 0x49, 0x46, 0x00, 0x01}
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return client
}

func TestRemoveBackground(t *testing.T) {
	cutout := append([]byte{}, pngHeader...)
	var gotContentType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/remove", r.URL.Path)
		gotContentType = r.Header.Get("content-type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("content-type", "image/png")
		_, _ = w.Write(cutout)
	})

	// Claimed mime is wrong on purpose: the client must sniff the bytes.
	img, err := client.RemoveBackground(context.Background(), flyer.Image{Data: jpegHeader, Mime: "image/webp"})
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, jpegHeader, gotBody)
	assert.Equal(t, cutout, img.Data)
	assert.Equal(t, "image/png", img.Mime)
}

func TestRemoveBackgroundServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("matting failed"))
	})

	_, err := client.RemoveBackground(context.Background(), flyer.Image{Data: pngHeader, Mime: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matting failed")
}

func TestRemoveBackgroundEmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.RemoveBackground(context.Background(), flyer.Image{})
	require.Error(t, err)
}

func TestRemoveBackgroundEmptyReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.RemoveBackground(context.Background(), flyer.Image{Data: pngHeader, Mime: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty image data")
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{HTTPClient: http.DefaultClient})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "http://localhost:7000"})
	require.Error(t, err)
}
