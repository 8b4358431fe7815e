package flyer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyerforge-ai/internal/flyer"
)

func TestBuildLayoutPromptContract(t *testing.T) {
	prompt := flyer.BuildLayoutPrompt("grand opening of a bakery", flyer.PromptOptions{})

	// The contract the scanner relies on must be spelled out to the model.
	assert.Contains(t, prompt, flyer.PromptAttr)
	assert.Contains(t, prompt, flyer.TransparentAttr)
	assert.Contains(t, prompt, "grand opening of a bakery")
	assert.Contains(t, prompt, "A4 portrait")
}

func TestBuildLayoutPromptStyleAndPalette(t *testing.T) {
	prompt := flyer.BuildLayoutPrompt("brief", flyer.PromptOptions{
		Style:   "dark_neon",
		Format:  "story",
		Palette: "violet and teal",
	})

	assert.Contains(t, prompt, "Dark Neon")
	assert.Contains(t, prompt, "1080x1920")
	assert.Contains(t, prompt, "violet and teal")
}

func TestBuildLayoutPromptUnknownKeysFallBack(t *testing.T) {
	prompt := flyer.BuildLayoutPrompt("brief", flyer.PromptOptions{Style: "nope", Format: "nope"})

	assert.NotContains(t, prompt, "Art direction")
	assert.Contains(t, prompt, "A4 portrait")
}

func TestStylesCatalog(t *testing.T) {
	styles := flyer.Styles()
	require.NotEmpty(t, styles)
	assert.Equal(t, flyer.NamedOption{Key: "", Name: "Default"}, styles[0])

	seen := map[string]bool{}
	for _, s := range styles {
		assert.False(t, seen[s.Key], "duplicate style key %q", s.Key)
		seen[s.Key] = true
		assert.NotEmpty(t, s.Name)
	}
}

func TestStyleName(t *testing.T) {
	assert.Equal(t, "Modern Minimal", flyer.StyleName("modern_minimal"))
	assert.Equal(t, "Default", flyer.StyleName(""))
	assert.Equal(t, "Default", flyer.StyleName("unknown"))
}

func TestFormatsCatalog(t *testing.T) {
	formats := flyer.Formats()
	require.NotEmpty(t, formats)
	assert.Equal(t, "portrait", formats[0].Key)

	assert.Equal(t, "A4 portrait", flyer.FormatName("portrait"))
	assert.Equal(t, "A4 portrait", flyer.FormatName(""))
	assert.Equal(t, "Story", flyer.FormatName("story"))
}

func TestImageDataURL(t *testing.T) {
	img := flyer.Image{Data: []byte{0x89, 0x50, 0x4e, 0x47}, Mime: "image/png"}
	url := img.DataURL()
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.False(t, img.IsZero())
	assert.True(t, flyer.Image{}.IsZero())
}
