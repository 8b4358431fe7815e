package flyer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyerforge-ai/internal/flyer"
)

type fakeLayout struct {
	calls   int
	prompts []string
	html    string
	err     error
}

func (f *fakeLayout) GenerateLayout(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.html, f.err
}

func newRunner(t *testing.T, layout flyer.LayoutProducer, gen flyer.ImageGenerator) *flyer.Runner {
	t.Helper()
	resolver, err := flyer.NewResolver(flyer.ResolverOptions{Generator: gen})
	require.NoError(t, err)
	runner, err := flyer.NewRunner(flyer.RunnerOptions{Layout: layout, Resolver: resolver})
	require.NoError(t, err)
	return runner
}

func TestRunEmptyBrief(t *testing.T) {
	layout := &fakeLayout{}
	runner := newRunner(t, layout, &fakeGenerator{})

	_, err := runner.Run(context.Background(), "   ", flyer.PromptOptions{}, nil)

	require.ErrorIs(t, err, flyer.ErrEmptyBrief)
	assert.Zero(t, layout.calls, "validation happens before any external call")
}

func TestRunLayoutFailureIsFatal(t *testing.T) {
	layout := &fakeLayout{err: errors.New("bad credentials")}
	gen := &fakeGenerator{}
	runner := newRunner(t, layout, gen)

	var events []flyer.Event
	_, err := runner.Run(context.Background(), "summer sale", flyer.PromptOptions{}, func(ev flyer.Event) {
		events = append(events, ev)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
	assert.Empty(t, gen.calls)

	require.Len(t, events, 2)
	assert.Equal(t, flyer.Event{Stage: flyer.StageLayout, Status: flyer.StatusStart}, events[0])
	assert.Equal(t, flyer.Event{Stage: flyer.StageLayout, Status: flyer.StatusFailed}, events[1])
}

func TestRunEndToEnd(t *testing.T) {
	layout := &fakeLayout{html: `<div>
		<h1>Summer Sale</h1>
		<img data-image-prompt="beach ball" width="200" height="200">
		<img data-image-prompt="shop logo" data-transparent="true" width="96" height="96">
	</div>`}
	gen := &fakeGenerator{}
	runner := newRunner(t, layout, gen)

	var events []flyer.Event
	result, err := runner.Run(context.Background(), "summer sale at the beach shop", flyer.PromptOptions{Style: "playful_pop"}, func(ev flyer.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, flyer.Summary{Total: 2, Completed: 2, Failed: 0}, result.Summary)
	assert.Contains(t, result.HTML, "Summer Sale")
	assert.Contains(t, result.HTML, result.Placeholders[0].Result.DataURL())

	require.Len(t, layout.prompts, 1)
	assert.Contains(t, layout.prompts[0], "summer sale at the beach shop")
	assert.Contains(t, layout.prompts[0], flyer.PromptAttr)

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, flyer.Event{Stage: flyer.StageLayout, Status: flyer.StatusStart}, events[0])
	assert.Equal(t, flyer.Event{Stage: flyer.StageLayout, Status: flyer.StatusDone}, events[1])
	for _, ev := range events[2:] {
		assert.Equal(t, flyer.StageImage, ev.Stage)
	}
}

func TestRunZeroPlaceholders(t *testing.T) {
	layout := &fakeLayout{html: `<div><h1>Text only flyer</h1></div>`}
	gen := &fakeGenerator{}
	runner := newRunner(t, layout, gen)

	result, err := runner.Run(context.Background(), "text only", flyer.PromptOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, flyer.Summary{Total: 0, Completed: 0, Failed: 0}, result.Summary)
	assert.Empty(t, gen.calls)
	assert.Contains(t, result.HTML, "Text only flyer")
}
