package diffusion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"flyerforge-ai/internal/flyer"
)

// Client talks to a diffusion inference server: prompt and pixel size in,
// raw image bytes out.
type Options struct {
	BaseURL    string
	APIKey     string // optional bearer token
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("diffusion base url is empty")
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// GenerateImage requests one raster image. Dimensions are normalized to
// what the server accepts (≥64, multiples of 16) before the call.
func (c *Client) GenerateImage(ctx context.Context, prompt string, width, height int) (flyer.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return flyer.Image{}, errors.New("prompt is empty")
	}

	payload := generateRequest{
		Prompt: prompt,
		Width:  NormalizeDimension(width),
		Height: NormalizeDimension(height),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return flyer.Image{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return flyer.Image{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("diffusion request", "width", payload.Width, "height", payload.Height)

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
		return flyer.Image{}, fmt.Errorf("diffusion server %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if len(data) == 0 {
		return flyer.Image{}, errors.New("diffusion server returned empty image data")
	}

	return flyer.Image{Data: data, Mime: imageMime(resp.Header.Get("content-type"), data)}, nil
}

// NormalizeDimension clamps a dimension up to the 64-pixel minimum and
// rounds it to the nearest multiple of 16.
func NormalizeDimension(n int) int {
	if n < flyer.MinDimension {
		n = flyer.MinDimension
	}

	rounded := (n + 8) / 16 * 16
	if rounded < flyer.MinDimension {
		rounded = flyer.MinDimension
	}
	return rounded
}

func imageMime(header string, data []byte) string {
	mime := strings.TrimSpace(header)
	if strings.Contains(mime, ";") {
		mime = strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if strings.Contains(mime, ";") {
		mime = strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	}
	return mime
}
