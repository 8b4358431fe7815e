package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"flyerforge-ai/internal/flyer"
	"flyerforge-ai/internal/notify"
	"flyerforge-ai/internal/session"
	"flyerforge-ai/internal/telegram"
)

type Options struct {
	Telegram         *telegram.Client
	Runner           *flyer.Runner
	Sessions         *session.Store
	Logger           *slog.Logger
	ProgressDebounce time.Duration
	RunTimeout       time.Duration
	MaxConcurrent    int
}

type Handler struct {
	tg       *telegram.Client
	runner   *flyer.Runner
	sessions *session.Store
	logger   *slog.Logger

	progressDebounce time.Duration
	runTimeout       time.Duration

	// Bounds concurrent runs across all chats.
	slots chan struct{}
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := opts.ProgressDebounce
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}

	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 300 * time.Second
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Handler{
		tg:               opts.Telegram,
		runner:           opts.Runner,
		sessions:         opts.Sessions,
		logger:           logger,
		progressDebounce: debounce,
		runTimeout:       runTimeout,
		slots:            make(chan struct{}, maxConcurrent),
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg)
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		// Plain text is treated as a brief.
		return h.handleFlyer(ctx, chatID, text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"🎨 FlyerForge\n\n"+
				"Send me a brief and I will design a flyer for it: layout,\n"+
				"generated images, the works.\n\n"+
				"Commands:\n"+
				"/flyer <brief> - Generate a flyer\n"+
				"/style - Pick an art style\n"+
				"/format - Pick a page format\n"+
				"/cancel - Stop the current run\n"+
				"/help - Help",
		)
	case "help":
		return h.tg.SendText(chatID,
			"🎨 Help\n\n"+
				"Send a text brief (or use /flyer <brief>) and I will build a\n"+
				"flyer: an HTML layout with freshly generated images.\n\n"+
				"/style — choose an art style for future flyers.\n"+
				"/format — choose a page format (portrait, square, ...).\n"+
				"/cancel — stop the flyer currently being generated.\n\n"+
				"You get the images as photos plus the full flyer as an HTML\n"+
				"file you can open in a browser.",
		)
	case "style":
		return h.handleStyle(chatID, strings.TrimSpace(msg.CommandArguments()))
	case "format":
		return h.handleFormat(chatID, strings.TrimSpace(msg.CommandArguments()))
	case "flyer":
		brief := strings.TrimSpace(msg.CommandArguments())
		if brief == "" {
			return h.tg.SendText(chatID, "❌ Please describe the flyer.\nExample: /flyer Grand opening of Oak & Ember bakery, Saturday 10am")
		}
		return h.handleFlyer(ctx, chatID, brief)
	case "cancel":
		if h.sessions.Cancel(chatID) {
			return h.tg.SendText(chatID, "🛑 Stopping the current run...")
		}
		return h.tg.SendText(chatID, "Nothing is running right now.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Try /help.")
	}
}

func (h *Handler) handleStyle(chatID int64, arg string) error {
	styles := flyer.Styles()

	if arg == "" {
		current := h.sessions.Style(chatID)
		var b strings.Builder
		b.WriteString("🎭 Styles (current: " + flyer.StyleName(current) + ")\n\n")
		for _, s := range styles {
			key := s.Key
			if key == "" {
				key = "default"
			}
			b.WriteString(fmt.Sprintf("• %s — /style %s\n", s.Name, key))
		}
		return h.tg.SendText(chatID, b.String())
	}

	if arg == "default" {
		h.sessions.SetStyle(chatID, "")
		return h.tg.SendText(chatID, "✅ Style set: Default")
	}
	for _, s := range styles {
		if s.Key == arg {
			h.sessions.SetStyle(chatID, s.Key)
			return h.tg.SendText(chatID, "✅ Style set: "+s.Name)
		}
	}
	return h.tg.SendText(chatID, "❌ Unknown style. Use /style to list them.")
}

func (h *Handler) handleFormat(chatID int64, arg string) error {
	formats := flyer.Formats()

	if arg == "" {
		current := h.sessions.Format(chatID)
		var b strings.Builder
		b.WriteString("📐 Formats (current: " + flyer.FormatName(current) + ")\n\n")
		for _, f := range formats {
			b.WriteString(fmt.Sprintf("• %s — /format %s\n", f.Name, f.Key))
		}
		return h.tg.SendText(chatID, b.String())
	}

	for _, f := range formats {
		if f.Key == arg {
			h.sessions.SetFormat(chatID, f.Key)
			return h.tg.SendText(chatID, "✅ Format set: "+f.Name)
		}
	}
	return h.tg.SendText(chatID, "❌ Unknown format. Use /format to list them.")
}

func (h *Handler) handleFlyer(ctx context.Context, chatID int64, brief string) error {
	runCtx, cancel := context.WithTimeout(ctx, h.runTimeout)

	if !h.sessions.StartRun(chatID, cancel) {
		cancel()
		return h.tg.SendText(chatID, "⏳ A flyer is already being generated for this chat. /cancel to stop it.")
	}
	defer func() {
		h.sessions.EndRun(chatID)
		cancel()
	}()

	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-runCtx.Done():
		return h.tg.SendText(chatID, "🛑 Cancelled before the run started.")
	}

	h.tg.SendTyping(chatID)

	statusID, err := h.tg.SendStatus(chatID, "🎨 Designing the layout...")
	if err != nil {
		return err
	}

	throttler := notify.New(notify.Options{
		Debounce: h.progressDebounce,
		OnFlush: func(ev flyer.Event) {
			if err := h.tg.EditStatus(chatID, statusID, progressText(ev)); err != nil {
				h.logger.Warn("progress edit failed", "err", err)
			}
		},
	})
	defer throttler.Flush()

	opts := flyer.PromptOptions{
		Style:  h.sessions.Style(chatID),
		Format: h.sessions.Format(chatID),
	}

	result, err := h.runner.Run(runCtx, brief, opts, throttler.Notify)
	if err != nil {
		h.logger.Error("flyer run failed", "chat_id", chatID, "err", err)
		throttler.Flush()
		if runCtx.Err() != nil {
			return h.tg.EditStatus(chatID, statusID, "🛑 Run stopped.")
		}
		return h.tg.EditStatus(chatID, statusID, "❌ Could not generate the flyer. Please try again.")
	}

	throttler.Flush()
	if err := h.tg.EditStatus(chatID, statusID, summaryText(result.Summary)); err != nil {
		h.logger.Warn("summary edit failed", "err", err)
	}

	return h.deliver(ctx, chatID, result)
}

// deliver sends every resolved image as a photo and the final markup as
// an HTML document. Uploads run in parallel; delivery errors are logged
// and do not fail the run.
func (h *Handler) deliver(ctx context.Context, chatID int64, result *flyer.Result) error {
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(3)

	for _, ph := range result.Placeholders {
		if ph.State != flyer.StateResolved {
			continue
		}
		ph := ph
		eg.Go(func() error {
			caption := fmt.Sprintf("%d/%d %s", ph.Index+1, result.Summary.Total, ph.Prompt)
			return h.tg.SendImage(chatID, ph.Result, caption)
		})
	}

	if err := eg.Wait(); err != nil {
		h.logger.Warn("image delivery failed", "chat_id", chatID, "err", err)
	}

	name := fmt.Sprintf("flyer-%s.html", result.ID)
	if err := h.tg.SendHTMLDocument(chatID, name, result.HTML); err != nil {
		h.logger.Error("document delivery failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "⚠️ The flyer was generated but the file could not be delivered.")
	}

	return nil
}

func progressText(ev flyer.Event) string {
	switch ev.Stage {
	case flyer.StageLayout:
		switch ev.Status {
		case flyer.StatusDone:
			return "✅ Layout ready. Generating images..."
		case flyer.StatusFailed:
			return "❌ Layout generation failed."
		default:
			return "🎨 Designing the layout..."
		}
	case flyer.StageImage:
		switch ev.Status {
		case flyer.StatusStart:
			return fmt.Sprintf("🖼 Generating image %d of %d...", ev.Index, ev.Total)
		case flyer.StatusFailed:
			return fmt.Sprintf("⚠️ Image %d of %d failed, continuing...", ev.Index, ev.Total)
		default:
			return fmt.Sprintf("🖼 Image %d of %d done.", ev.Index, ev.Total)
		}
	}
	return "Working..."
}

func summaryText(s flyer.Summary) string {
	if s.Total == 0 {
		return "✅ Flyer ready. The layout needed no generated images."
	}
	if s.Failed == 0 {
		return fmt.Sprintf("✅ Flyer ready: %d images generated.", s.Completed)
	}
	return fmt.Sprintf("⚠️ Flyer ready: %d of %d images generated, %d failed.", s.Completed, s.Total, s.Failed)
}
