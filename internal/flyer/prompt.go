package flyer

import (
	"fmt"
	"strings"
)

type PromptOptions struct {
	Style   string // style preset key, "" = default
	Format  string // "portrait" | "square" | "landscape" | "story"
	Palette string // optional free-form palette hint
}

type NamedOption struct {
	Key  string
	Name string
}

type StylePreset struct {
	Name  string
	Lines []string
}

type FormatPreset struct {
	Name   string
	Width  int
	Height int
}

var stylePresets = map[string]StylePreset{
	"modern_minimal": {
		Name: "Modern Minimal",
		Lines: []string{
			"Generous whitespace, one strong focal image",
			"Sans-serif typography, at most two weights",
			"Restrained palette: one accent color over neutrals",
			"Grid-aligned blocks, no decorative borders",
		},
	},
	"bold_retro": {
		Name: "Bold Retro",
		Lines: []string{
			"Thick display headline, 70s poster energy",
			"Warm saturated palette: mustard, burnt orange, cream",
			"Chunky shapes and badges framing the content",
			"Slight off-grid placement for a hand-set feel",
		},
	},
	"elegant_serif": {
		Name: "Elegant Serif",
		Lines: []string{
			"High-contrast serif headline, airy letter spacing",
			"Muted palette: ivory, charcoal, a single metallic accent",
			"Thin rules separating sections",
			"Centered, symmetric composition",
		},
	},
	"playful_pop": {
		Name: "Playful Pop",
		Lines: []string{
			"Bright candy palette, rounded shapes everywhere",
			"Oversized friendly headline, mixed type sizes",
			"Sticker-like image cutouts at playful angles",
			"Dense but cheerful, no empty corners",
		},
	},
	"corporate_clean": {
		Name: "Corporate Clean",
		Lines: []string{
			"Structured two-column grid, clear hierarchy",
			"Company-blue accents over white and light gray",
			"Compact headline, informative subheads",
			"Images in clean rectangles, subtle shadows",
		},
	},
	"dark_neon": {
		Name: "Dark Neon",
		Lines: []string{
			"Near-black background, neon accent glow",
			"Condensed uppercase headline",
			"High-contrast imagery with saturated highlights",
			"Thin luminous rules and outlines",
		},
	},
}

var styleOrder = []string{
	"modern_minimal",
	"bold_retro",
	"elegant_serif",
	"playful_pop",
	"corporate_clean",
	"dark_neon",
}

var formatPresets = map[string]FormatPreset{
	"portrait":  {Name: "A4 portrait", Width: 794, Height: 1123},
	"square":    {Name: "Square post", Width: 1080, Height: 1080},
	"landscape": {Name: "Landscape banner", Width: 1280, Height: 720},
	"story":     {Name: "Story", Width: 1080, Height: 1920},
}

var formatOrder = []string{"portrait", "square", "landscape", "story"}

const defaultFormat = "portrait"

// Styles returns the selectable style presets in a stable order, with a
// default entry first.
func Styles() []NamedOption {
	out := make([]NamedOption, 0, len(styleOrder)+1)
	out = append(out, NamedOption{Key: "", Name: "Default"})
	for _, key := range styleOrder {
		if preset, ok := stylePresets[key]; ok {
			out = append(out, NamedOption{Key: key, Name: preset.Name})
		}
	}
	return out
}

// StyleName resolves a preset key to its display name, falling back to
// "Default" for unknown keys.
func StyleName(key string) string {
	if preset, ok := stylePresets[key]; ok {
		return preset.Name
	}
	return "Default"
}

// Formats returns the selectable page formats in a stable order.
func Formats() []NamedOption {
	out := make([]NamedOption, 0, len(formatOrder))
	for _, key := range formatOrder {
		if preset, ok := formatPresets[key]; ok {
			out = append(out, NamedOption{Key: key, Name: preset.Name})
		}
	}
	return out
}

// FormatName resolves a format key to its display name, falling back to
// the default format's name.
func FormatName(key string) string {
	if preset, ok := formatPresets[key]; ok {
		return preset.Name
	}
	return formatPresets[defaultFormat].Name
}

// BuildLayoutPrompt assembles the instruction sent to the layout model.
// The placeholder contract in the prompt must match what the scanner
// looks for.
func BuildLayoutPrompt(brief string, opts PromptOptions) string {
	format, ok := formatPresets[opts.Format]
	if !ok {
		format = formatPresets[defaultFormat]
	}

	var b strings.Builder

	b.WriteString("You are a flyer layout designer. Produce a single self-contained HTML fragment for a flyer.\n\n")

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- The root element is one <div> sized %dx%d CSS pixels (%s), styled inline.\n",
		format.Width, format.Height, format.Name)
	b.WriteString("- All styling is inline CSS. No <style> blocks, no classes, no scripts, no external resources.\n")
	b.WriteString("- Every image is an <img> tag with a " + PromptAttr + " attribute holding a detailed,\n")
	b.WriteString("  self-contained generation prompt for that image. Do not set src.\n")
	b.WriteString("- Give each <img> explicit width and height attributes in pixels.\n")
	b.WriteString("- Add " + TransparentAttr + "=\"true\" on images that must sit on the flyer background\n")
	b.WriteString("  without a box: logos, product cutouts, decorative objects. Omit it for photos and scenes.\n")
	b.WriteString("- Use 2 to 4 images total. Text content comes from the brief; invent tasteful filler only\n")
	b.WriteString("  where the brief leaves gaps.\n")
	b.WriteString("- Output only the HTML fragment. No markdown fences, no commentary.\n")

	if preset, ok := stylePresets[opts.Style]; ok {
		b.WriteString("\nArt direction (" + preset.Name + "):\n")
		for _, line := range preset.Lines {
			b.WriteString("- " + line + "\n")
		}
	}

	if palette := strings.TrimSpace(opts.Palette); palette != "" {
		b.WriteString("\nPalette: " + palette + "\n")
	}

	b.WriteString("\nBrief:\n" + strings.TrimSpace(brief) + "\n")

	return b.String()
}
