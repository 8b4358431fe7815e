package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flyerforge-ai/internal/config"
	"flyerforge-ai/internal/diffusion"
	"flyerforge-ai/internal/flyer"
	"flyerforge-ai/internal/gemini"
	"flyerforge-ai/internal/handlers"
	"flyerforge-ai/internal/httpclient"
	"flyerforge-ai/internal/openai"
	"flyerforge-ai/internal/segment"
	"flyerforge-ai/internal/session"
	"flyerforge-ai/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	runner, err := buildRunner(cfg, httpClient, logger)
	if err != nil {
		logger.Error("pipeline init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		DefaultStyle:  cfg.DefaultStyle,
		DefaultFormat: cfg.DefaultFormat,
	})

	handler := handlers.New(handlers.Options{
		Telegram:         tg,
		Runner:           runner,
		Sessions:         sessions,
		Logger:           logger,
		ProgressDebounce: cfg.ProgressDebounce,
		RunTimeout:       cfg.RequestTimeout,
		MaxConcurrent:    cfg.MaxConcurrent,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bot started", "username", tg.Username(),
		"layout_provider", cfg.LayoutProvider, "image_provider", cfg.ImageProvider)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			go func(update telegram.Update) {
				if err := handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func buildRunner(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (*flyer.Runner, error) {
	var gem *gemini.Client
	if cfg.LayoutProvider == config.ProviderGemini || cfg.ImageProvider == config.ProviderGemini {
		gem = gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.GeminiImageModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}

	var layout flyer.LayoutProducer
	switch cfg.LayoutProvider {
	case config.ProviderOpenAI:
		client, err := openai.New(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		layout = client
	default:
		layout = gem
	}

	var generator flyer.ImageGenerator
	switch cfg.ImageProvider {
	case config.ProviderDiffusion:
		client, err := diffusion.New(diffusion.Options{
			BaseURL:    cfg.DiffusionURL,
			APIKey:     cfg.DiffusionAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		generator = client
	default:
		generator = gem
	}

	var remover flyer.BackgroundRemover
	if cfg.SegmenterURL != "" {
		client, err := segment.New(segment.Options{
			BaseURL:    cfg.SegmenterURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		remover = client
	}

	resolver, err := flyer.NewResolver(flyer.ResolverOptions{
		Generator: generator,
		Remover:   remover,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return flyer.NewRunner(flyer.RunnerOptions{
		Layout:   layout,
		Resolver: resolver,
		Logger:   logger,
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
