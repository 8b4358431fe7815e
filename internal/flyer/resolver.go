package flyer

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// ImageGenerator produces a raster image for a prompt at the requested
// size. Backends may round the dimensions to what their API accepts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, width, height int) (Image, error)
}

// BackgroundRemover returns an alpha-matted version of an encoded image.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img Image) (Image, error)
}

type ResolverOptions struct {
	Generator ImageGenerator
	Remover   BackgroundRemover // optional; transparent slots resolve opaque without one
	Logger    *slog.Logger
}

// Resolver fills every placeholder of a document, one at a time, in
// document order.
type Resolver struct {
	gen     ImageGenerator
	remover BackgroundRemover
	logger  *slog.Logger
}

func NewResolver(opts ResolverOptions) (*Resolver, error) {
	if opts.Generator == nil {
		return nil, errors.New("image generator is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Resolver{
		gen:     opts.Generator,
		remover: opts.Remover,
		logger:  logger,
	}, nil
}

// Resolve drives every placeholder to a terminal state. A failed
// generation marks its placeholder and moves on; it never aborts the
// remaining ones. Context cancellation is honored only between
// placeholders, so an in-flight backend call always completes or times
// out on its own.
func (r *Resolver) Resolve(ctx context.Context, doc *Document, sink Sink) Summary {
	total := len(doc.Placeholders)
	summary := Summary{Total: total}

	for i, ph := range doc.Placeholders {
		if err := ctx.Err(); err != nil {
			r.fail(doc, ph, &summary, sink, err)
			continue
		}

		emit(sink, Event{Stage: StageImage, Status: StatusStart, Index: i + 1, Total: total})

		img, err := r.gen.GenerateImage(ctx, ph.Prompt, ph.Width, ph.Height)
		if err != nil {
			r.logger.Error("image generation failed", "index", ph.Index, "err", err)
			r.fail(doc, ph, &summary, sink, err)
			continue
		}

		if ph.Transparent {
			img = r.removeBackground(ctx, ph.Index, img)
		}

		ph.State = StateResolved
		ph.Result = img
		doc.setResolved(ph.Index, img)
		summary.Completed++
		emit(sink, Event{Stage: StageImage, Status: StatusDone, Index: i + 1, Total: total})
	}

	return summary
}

func (r *Resolver) fail(doc *Document, ph *Placeholder, summary *Summary, sink Sink, err error) {
	ph.State = StateFailed
	ph.FailureReason = err.Error()
	doc.markFailed(ph.Index)
	summary.Failed++
	emit(sink, Event{Stage: StageImage, Status: StatusFailed, Index: ph.Index + 1, Total: summary.Total})
}

// removeBackground never fails a placeholder: any segmentation problem
// degrades to the opaque pre-segmentation image.
func (r *Resolver) removeBackground(ctx context.Context, index int, img Image) Image {
	if r.remover == nil {
		r.logger.Warn("transparent slot but no background remover configured", "index", index)
		return img
	}

	cut, err := r.remover.RemoveBackground(ctx, img)
	if err != nil {
		r.logger.Warn("background removal failed, keeping opaque image", "index", index, "err", err)
		return img
	}
	return cut
}
