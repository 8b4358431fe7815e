package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"flyerforge-ai/internal/flyer"
)

// Client talks to a background-removal server (rembg-style): encoded
// image bytes in, PNG with an alpha channel out.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("segmenter base url is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

// RemoveBackground posts the image bytes and returns the alpha-matted
// result. The input content type is sniffed from the bytes, never taken
// on trust from the caller.
func (c *Client) RemoveBackground(ctx context.Context, img flyer.Image) (flyer.Image, error) {
	if img.IsZero() {
		return flyer.Image{}, errors.New("image is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/remove", bytes.NewReader(img.Data))
	if err != nil {
		return flyer.Image{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("content-type", http.DetectContentType(img.Data))
	req.Header.Set("accept", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return flyer.Image{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return flyer.Image{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return flyer.Image{}, fmt.Errorf("segmenter %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if len(data) == 0 {
		return flyer.Image{}, errors.New("segmenter returned empty image data")
	}

	return flyer.Image{Data: data, Mime: "image/png"}, nil
}
