package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderDiffusion = "diffusion"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string
	OpenAIAPIKey  string

	LayoutProvider string // "gemini" | "openai"
	ImageProvider  string // "diffusion" | "gemini"

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	WebAddr string

	MaxConcurrent    int
	RequestTimeout   time.Duration
	HTTPTimeout      time.Duration
	ProgressDebounce time.Duration

	DefaultStyle  string
	DefaultFormat string

	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiTextModel  string
	GeminiImageModel string

	OpenAIBaseURL string
	OpenAIModel   string

	DiffusionURL    string
	DiffusionAPIKey string

	SegmenterURL string
}

func Load() (Config, error) {
	cfg := Config{
		LayoutProvider:   strings.ToLower(strings.TrimSpace(getEnv("LAYOUT_PROVIDER", ProviderGemini))),
		ImageProvider:    strings.ToLower(strings.TrimSpace(getEnv("IMAGE_PROVIDER", ProviderDiffusion))),
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		WebAddr:          strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		ProgressDebounce: time.Duration(getEnvInt("PROGRESS_DEBOUNCE_MS", 1500)) * time.Millisecond,
		DefaultStyle:     strings.TrimSpace(getEnv("DEFAULT_STYLE", "")),
		DefaultFormat:    strings.TrimSpace(getEnv("DEFAULT_FORMAT", "portrait")),
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		GeminiTextModel:  strings.TrimSpace(getEnv("GEMINI_TEXT_MODEL", "")),
		GeminiImageModel: strings.TrimSpace(getEnv("GEMINI_IMAGE_MODEL", "")),
		OpenAIBaseURL:    strings.TrimSpace(getEnv("OPENAI_BASE_URL", "")),
		OpenAIModel:      strings.TrimSpace(getEnv("OPENAI_MODEL", "")),
		DiffusionURL:     strings.TrimSpace(getEnv("DIFFUSION_URL", "")),
		DiffusionAPIKey:  strings.TrimSpace(os.Getenv("DIFFUSION_API_KEY")),
		SegmenterURL:     strings.TrimSpace(getEnv("SEGMENTER_URL", "")),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	switch cfg.LayoutProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unknown LAYOUT_PROVIDER %q", cfg.LayoutProvider)
	}

	switch cfg.ImageProvider {
	case ProviderDiffusion, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("unknown IMAGE_PROVIDER %q", cfg.ImageProvider)
	}

	needsGemini := cfg.LayoutProvider == ProviderGemini || cfg.ImageProvider == ProviderGemini
	switch {
	case needsGemini && cfg.GeminiAPIKey == "":
		return Config{}, errors.New("GEMINI_API_KEY is required")
	case cfg.LayoutProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "":
		return Config{}, errors.New("OPENAI_API_KEY is required")
	case cfg.ImageProvider == ProviderDiffusion && cfg.DiffusionURL == "":
		return Config{}, errors.New("DIFFUSION_URL is required")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 300 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.ProgressDebounce <= 0 {
		cfg.ProgressDebounce = 1500 * time.Millisecond
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
