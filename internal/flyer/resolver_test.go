package flyer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyerforge-ai/internal/flyer"
)

type genCall struct {
	Prompt string
	Width  int
	Height int
}

type fakeGenerator struct {
	calls []genCall
	fn    func(call genCall) (flyer.Image, error)
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt string, width, height int) (flyer.Image, error) {
	call := genCall{Prompt: prompt, Width: width, Height: height}
	f.calls = append(f.calls, call)
	if f.fn != nil {
		return f.fn(call)
	}
	return flyer.Image{Data: []byte("raster:" + prompt), Mime: "image/png"}, nil
}

type fakeRemover struct {
	calls int
	fn    func(img flyer.Image) (flyer.Image, error)
}

func (f *fakeRemover) RemoveBackground(_ context.Context, img flyer.Image) (flyer.Image, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(img)
	}
	return flyer.Image{Data: append([]byte("cutout:"), img.Data...), Mime: "image/png"}, nil
}

func newResolver(t *testing.T, gen flyer.ImageGenerator, rem flyer.BackgroundRemover) *flyer.Resolver {
	t.Helper()
	r, err := flyer.NewResolver(flyer.ResolverOptions{Generator: gen, Remover: rem})
	require.NoError(t, err)
	return r
}

func TestResolveEmptyDocument(t *testing.T) {
	doc, err := flyer.Scan(`<div><h1>just text</h1></div>`)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	rem := &fakeRemover{}
	var events []flyer.Event

	summary := newResolver(t, gen, rem).Resolve(context.Background(), doc, func(ev flyer.Event) {
		events = append(events, ev)
	})

	assert.Equal(t, flyer.Summary{Total: 0, Completed: 0, Failed: 0}, summary)
	assert.Empty(t, gen.calls)
	assert.Zero(t, rem.calls)
	assert.Empty(t, events)
}

func TestResolveOpaquePlaceholders(t *testing.T) {
	doc, err := flyer.Scan(`
		<img data-image-prompt="sunset" width="640" height="480">
		<img data-image-prompt="mountain" width="640" height="480">`)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	rem := &fakeRemover{}

	summary := newResolver(t, gen, rem).Resolve(context.Background(), doc, nil)

	assert.Equal(t, flyer.Summary{Total: 2, Completed: 2, Failed: 0}, summary)
	require.Len(t, gen.calls, 2)
	assert.Equal(t, "sunset", gen.calls[0].Prompt)
	assert.Equal(t, "mountain", gen.calls[1].Prompt)
	assert.Zero(t, rem.calls, "opaque placeholders must not hit the remover")

	for _, ph := range doc.Placeholders {
		assert.Equal(t, flyer.StateResolved, ph.State)
		assert.False(t, ph.Result.IsZero())
	}
	assert.Equal(t, []byte("raster:sunset"), doc.Placeholders[0].Result.Data)
	assert.Equal(t, []byte("raster:mountain"), doc.Placeholders[1].Result.Data)

	html, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, doc.Placeholders[0].Result.DataURL())
	assert.Contains(t, html, doc.Placeholders[1].Result.DataURL())
}

func TestResolveTransparentPlaceholder(t *testing.T) {
	doc, err := flyer.Scan(`<img data-image-prompt="logo" data-transparent="true" width="128" height="128">`)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	rem := &fakeRemover{}

	summary := newResolver(t, gen, rem).Resolve(context.Background(), doc, nil)

	assert.Equal(t, flyer.Summary{Total: 1, Completed: 1, Failed: 0}, summary)
	assert.Equal(t, 1, rem.calls)
	assert.Equal(t, []byte("cutout:raster:logo"), doc.Placeholders[0].Result.Data)
}

func TestResolveSegmentationFailureDegrades(t *testing.T) {
	doc, err := flyer.Scan(`<img data-image-prompt="logo" data-transparent="true">`)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	rem := &fakeRemover{fn: func(flyer.Image) (flyer.Image, error) {
		return flyer.Image{}, errors.New("matting model crashed")
	}}

	summary := newResolver(t, gen, rem).Resolve(context.Background(), doc, nil)

	assert.Equal(t, flyer.Summary{Total: 1, Completed: 1, Failed: 0}, summary)
	ph := doc.Placeholders[0]
	assert.Equal(t, flyer.StateResolved, ph.State)
	assert.Equal(t, []byte("raster:logo"), ph.Result.Data, "must keep the pre-segmentation image")
	assert.Empty(t, ph.FailureReason)
}

func TestResolveWithoutRemoverResolvesOpaque(t *testing.T) {
	doc, err := flyer.Scan(`<img data-image-prompt="logo" data-transparent="true">`)
	require.NoError(t, err)

	summary := newResolver(t, &fakeGenerator{}, nil).Resolve(context.Background(), doc, nil)

	assert.Equal(t, flyer.Summary{Total: 1, Completed: 1, Failed: 0}, summary)
	assert.Equal(t, []byte("raster:logo"), doc.Placeholders[0].Result.Data)
}

func TestResolveFailureIsolation(t *testing.T) {
	doc, err := flyer.Scan(`
		<img data-image-prompt="one">
		<img data-image-prompt="two">
		<img data-image-prompt="three">`)
	require.NoError(t, err)

	gen := &fakeGenerator{fn: func(call genCall) (flyer.Image, error) {
		if call.Prompt == "two" {
			return flyer.Image{}, errors.New("quota exceeded")
		}
		return flyer.Image{Data: []byte("raster:" + call.Prompt), Mime: "image/png"}, nil
	}}

	summary := newResolver(t, gen, nil).Resolve(context.Background(), doc, nil)

	assert.Equal(t, flyer.Summary{Total: 3, Completed: 2, Failed: 1}, summary)
	assert.Len(t, gen.calls, 3, "a failure must not stop later attempts")

	assert.Equal(t, flyer.StateResolved, doc.Placeholders[0].State)
	assert.Equal(t, flyer.StateFailed, doc.Placeholders[1].State)
	assert.Equal(t, flyer.StateResolved, doc.Placeholders[2].State)
	assert.Contains(t, doc.Placeholders[1].FailureReason, "quota exceeded")

	html, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, flyer.FailedClass)
}

func TestResolveProgressEvents(t *testing.T) {
	doc, err := flyer.Scan(`
		<img data-image-prompt="one">
		<img data-image-prompt="two">
		<img data-image-prompt="three">`)
	require.NoError(t, err)

	gen := &fakeGenerator{fn: func(call genCall) (flyer.Image, error) {
		if call.Prompt == "two" {
			return flyer.Image{}, errors.New("boom")
		}
		return flyer.Image{Data: []byte("x"), Mime: "image/png"}, nil
	}}

	var events []flyer.Event
	summary := newResolver(t, gen, nil).Resolve(context.Background(), doc, func(ev flyer.Event) {
		events = append(events, ev)
	})

	assert.Equal(t, summary.Total, summary.Completed+summary.Failed)

	var starts []flyer.Event
	for _, ev := range events {
		require.Equal(t, flyer.StageImage, ev.Stage)
		if ev.Status == flyer.StatusStart {
			starts = append(starts, ev)
		}
	}

	require.Len(t, starts, 3, "exactly one start event per placeholder")
	for i, ev := range starts {
		assert.Equal(t, i+1, ev.Index, "start events arrive in document order")
		assert.Equal(t, 3, ev.Total)
	}

	want := []flyer.Event{
		{Stage: flyer.StageImage, Status: flyer.StatusStart, Index: 1, Total: 3},
		{Stage: flyer.StageImage, Status: flyer.StatusDone, Index: 1, Total: 3},
		{Stage: flyer.StageImage, Status: flyer.StatusStart, Index: 2, Total: 3},
		{Stage: flyer.StageImage, Status: flyer.StatusFailed, Index: 2, Total: 3},
		{Stage: flyer.StageImage, Status: flyer.StatusStart, Index: 3, Total: 3},
		{Stage: flyer.StageImage, Status: flyer.StatusDone, Index: 3, Total: 3},
	}
	assert.Equal(t, want, events)
}

func TestResolveCancelledContext(t *testing.T) {
	doc, err := flyer.Scan(`
		<img data-image-prompt="one">
		<img data-image-prompt="two">`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{}
	summary := newResolver(t, gen, nil).Resolve(ctx, doc, nil)

	assert.Empty(t, gen.calls)
	assert.Equal(t, flyer.Summary{Total: 2, Completed: 0, Failed: 2}, summary)
	for _, ph := range doc.Placeholders {
		assert.Equal(t, flyer.StateFailed, ph.State, fmt.Sprintf("placeholder %d must still reach a terminal state", ph.Index))
	}
}
