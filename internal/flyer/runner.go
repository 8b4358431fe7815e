package flyer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyBrief is returned before any external call when the brief is
// blank.
var ErrEmptyBrief = errors.New("brief is empty")

// LayoutProducer turns a layout prompt into an HTML fragment containing
// placeholder nodes.
type LayoutProducer interface {
	GenerateLayout(ctx context.Context, prompt string) (string, error)
}

type RunnerOptions struct {
	Layout   LayoutProducer
	Resolver *Resolver
	Logger   *slog.Logger
}

// Runner executes one generation request end to end: layout, scan,
// resolution.
type Runner struct {
	layout   LayoutProducer
	resolver *Resolver
	logger   *slog.Logger
}

// Result is the outcome of one run. HTML holds the layout with every
// placeholder in a terminal state.
type Result struct {
	ID           string
	Brief        string
	HTML         string
	Summary      Summary
	Placeholders []*Placeholder
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Layout == nil {
		return nil, errors.New("layout producer is nil")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Runner{
		layout:   opts.Layout,
		resolver: opts.Resolver,
		logger:   logger,
	}, nil
}

// Run performs one generation request. A layout failure aborts the run;
// per-image failures are isolated inside the resolution loop and show up
// only in the summary.
func (r *Runner) Run(ctx context.Context, brief string, opts PromptOptions, sink Sink) (*Result, error) {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return nil, ErrEmptyBrief
	}

	id := uuid.NewString()
	log := r.logger.With("run_id", id)
	log.Info("run started", "brief_len", len(brief), "style", opts.Style)

	emit(sink, Event{Stage: StageLayout, Status: StatusStart})
	layoutHTML, err := r.layout.GenerateLayout(ctx, BuildLayoutPrompt(brief, opts))
	if err != nil {
		emit(sink, Event{Stage: StageLayout, Status: StatusFailed})
		return nil, fmt.Errorf("layout generation: %w", err)
	}
	emit(sink, Event{Stage: StageLayout, Status: StatusDone})

	doc, err := Scan(layoutHTML)
	if err != nil {
		return nil, err
	}
	log.Info("layout scanned", "placeholders", len(doc.Placeholders))

	summary := r.resolver.Resolve(ctx, doc, sink)

	html, err := doc.HTML()
	if err != nil {
		return nil, err
	}

	log.Info("run finished", "completed", summary.Completed, "failed", summary.Failed)

	return &Result{
		ID:           id,
		Brief:        brief,
		HTML:         html,
		Summary:      summary,
		Placeholders: doc.Placeholders,
	}, nil
}
