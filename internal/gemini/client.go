package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"flyerforge-ai/internal/flyer"
)

const (
	defaultTextModel  = "gemini-3-pro-preview"
	defaultImageModel = "gemini-2.5-flash-image"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	textModel  string
	imageModel string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	textModel := strings.TrimSpace(opts.TextModel)
	if textModel == "" {
		textModel = defaultTextModel
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		textModel:  textModel,
		imageModel: imageModel,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateLayout asks the text model for a flyer layout fragment. The
// reply is returned as-is apart from stripping markdown fences the model
// sometimes wraps HTML in.
func (c *Client) GenerateLayout(ctx context.Context, prompt string) (string, error) {
	req := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:    0.7,
			ThinkingConfig: &thinkingConfig{ThinkingBudget: 8192},
		},
	}

	resp, err := c.generateContent(ctx, c.textModel, req)
	if err != nil && req.GenerationConfig.ThinkingConfig != nil {
		if isUnknownFieldError(err, "thinkingConfig") {
			req.GenerationConfig.ThinkingConfig = nil
			resp, err = c.generateContent(ctx, c.textModel, req)
		}
	}
	if err != nil {
		return "", err
	}

	layout := stripFences(collectText(resp))
	if layout == "" {
		return "", errors.New("gemini returned no layout text")
	}
	return layout, nil
}

// GenerateImage asks the image model for one raster image. The model only
// takes aspect ratios, so width and height are mapped to the nearest
// supported ratio.
func (c *Client) GenerateImage(ctx context.Context, prompt string, width, height int) (flyer.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return flyer.Image{}, errors.New("prompt is empty")
	}

	req := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: "Generate a high quality image: " + prompt}}},
		},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: aspectRatioFor(width, height)},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, req)
	if err != nil && req.GenerationConfig.ImageConfig != nil {
		if isUnknownFieldError(err, "imageConfig") {
			req.GenerationConfig.ImageConfig = nil
			resp, err = c.generateContent(ctx, c.imageModel, req)
		}
	}
	if err != nil {
		return flyer.Image{}, err
	}

	img, ok := firstInlineImage(resp)
	if !ok {
		return flyer.Image{}, errors.New("gemini returned no image data")
	}
	return img, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, fmt.Errorf("gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return decoded, nil
}

func collectText(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func firstInlineImage(resp generateContentResponse) (flyer.Image, bool) {
	if len(resp.Candidates) == 0 {
		return flyer.Image{}, false
	}

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			continue
		}
		mime := p.InlineData.MimeType
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		return flyer.Image{Data: data, Mime: mime}, true
	}

	return flyer.Image{}, false
}

var supportedRatios = []struct {
	name  string
	value float64
}{
	{"9:16", 9.0 / 16.0},
	{"3:4", 3.0 / 4.0},
	{"1:1", 1.0},
	{"4:3", 4.0 / 3.0},
	{"16:9", 16.0 / 9.0},
}

func aspectRatioFor(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}

	ratio := float64(width) / float64(height)
	best := supportedRatios[0]
	bestDiff := diff(ratio, best.value)
	for _, candidate := range supportedRatios[1:] {
		if d := diff(ratio, candidate.value); d < bestDiff {
			best = candidate
			bestDiff = d
		}
	}
	return best.name
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64         `json:"temperature,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
	ImageConfig        *imageConfig    `json:"imageConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}
