package flyer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// PromptAttr marks an img element as a placeholder and carries its
	// generation prompt.
	PromptAttr = "data-image-prompt"

	// TransparentAttr requests a background-removal pass for the slot.
	TransparentAttr = "data-transparent"

	// FailedClass marks a placeholder whose generation failed.
	FailedClass = "generation-failed"

	// DefaultDimension is used when neither an attribute nor an inline
	// style declares a size.
	DefaultDimension = 300

	// MinDimension is the smallest size the image backends accept.
	MinDimension = 64
)

// Document is a parsed layout with its placeholders in document order.
type Document struct {
	doc          *goquery.Document
	nodes        []*goquery.Selection
	Placeholders []*Placeholder
}

// Scan parses a layout fragment and enumerates its placeholders in
// document order. Scanning is read-only: the same input always yields the
// same sequence. Placeholder nodes without a prompt are ignored.
func Scan(layoutHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(layoutHTML))
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	d := &Document{doc: doc}
	doc.Find("img[" + PromptAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		prompt := strings.TrimSpace(sel.AttrOr(PromptAttr, ""))
		if prompt == "" {
			return
		}

		d.Placeholders = append(d.Placeholders, &Placeholder{
			Index:       len(d.Placeholders),
			Prompt:      prompt,
			Transparent: isTransparent(sel),
			Width:       resolveDimension(sel, "width"),
			Height:      resolveDimension(sel, "height"),
		})
		d.nodes = append(d.nodes, sel)
	})

	return d, nil
}

// HTML renders the layout back out with placeholders in their current
// state.
func (d *Document) HTML() (string, error) {
	out, err := d.doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render layout: %w", err)
	}
	return out, nil
}

func (d *Document) setResolved(i int, img Image) {
	d.nodes[i].SetAttr("src", img.DataURL())
}

func (d *Document) markFailed(i int) {
	sel := d.nodes[i]
	sel.AddClass(FailedClass)
	sel.SetAttr("alt", "image generation failed")
	sel.RemoveAttr("src")
}

func isTransparent(sel *goquery.Selection) bool {
	value, ok := sel.Attr(TransparentAttr)
	if !ok {
		return false
	}

	// A bare attribute counts as true, per the HTML boolean convention.
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == TransparentAttr {
		return true
	}
	return value == "1" || value == "true" || value == "yes"
}

var stylePxRegex = regexp.MustCompile(`(?i)([a-z-]+)\s*:\s*(\d+)(?:\.\d+)?px`)

// resolveDimension applies the fallback order: numeric width/height
// attribute, inline style pixel value, DefaultDimension. Anything below
// MinDimension is clamped up to it.
func resolveDimension(sel *goquery.Selection, name string) int {
	if raw, ok := sel.Attr(name); ok {
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "px")
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return clampDimension(n)
		}
	}

	if n := styleDimension(sel.AttrOr("style", ""), name); n > 0 {
		return clampDimension(n)
	}

	return DefaultDimension
}

func styleDimension(style, name string) int {
	for _, m := range stylePxRegex.FindAllStringSubmatch(style, -1) {
		if !strings.EqualFold(m[1], name) {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func clampDimension(n int) int {
	if n < MinDimension {
		return MinDimension
	}
	return n
}
