// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figure

import (
	"fmt"
	"html"
	"image"
	"regexp"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Document wraps a MuPDF document and exposes per-page blocks and region
// rendering. Pages that fail to decode are reported per page so the caller
// can skip them and keep the rest of the paper.
type Document struct {
	doc  *fitz.Document
	path string
}

// Open loads a PDF from disk.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	return &Document{doc: doc, path: path}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.doc.NumPage()
}

// Close releases the underlying document.
func (d *Document) Close() error {
	return d.doc.Close()
}

// MuPDF's structured-text HTML places every block with absolute pt offsets:
// text paragraphs carry top/left (extents are estimated from font size and
// line lengths), image blocks carry the full box.
var (
	pageDivRe  = regexp.MustCompile(`<div[^>]*style="[^"]*width:([0-9.]+)pt;height:([0-9.]+)pt`)
	paraRe     = regexp.MustCompile(`(?s)<p[^>]*style="([^"]*)"[^>]*>(.*?)</p>`)
	imgRe      = regexp.MustCompile(`<img[^>]*style="([^"]*)"[^>]*>`)
	fontSizeRe = regexp.MustCompile(`font-size:([0-9.]+)pt`)
	tagRe      = regexp.MustCompile(`<br[^>]*>|<[^>]+>`)
)

// Page decodes one page into text and image blocks with page-point
// bounding boxes.
func (d *Document) Page(n int) (*Page, error) {
	markup, err := d.doc.HTML(n, true)
	if err != nil {
		return nil, fmt.Errorf("decoding page %d of %s: %w", n, d.path, err)
	}

	p := &Page{Number: n}

	if m := pageDivRe.FindStringSubmatch(markup); m != nil {
		p.Width, _ = strconv.ParseFloat(m[1], 64)
		p.Height, _ = strconv.ParseFloat(m[2], 64)
	}
	if p.Width == 0 {
		if bounds, err := d.doc.Bound(n); err == nil {
			p.Width = float64(bounds.Dx())
			p.Height = float64(bounds.Dy())
		}
	}

	for _, m := range paraRe.FindAllStringSubmatch(markup, -1) {
		style, inner := m[1], m[2]
		top, topOK := styleValue(style, "top")
		left, leftOK := styleValue(style, "left")
		if !topOK || !leftOK {
			continue
		}
		text := flattenText(inner)
		if strings.TrimSpace(text) == "" {
			continue
		}
		size := 10.0
		if fm := fontSizeRe.FindStringSubmatch(inner); fm != nil {
			if v, err := strconv.ParseFloat(fm[1], 64); err == nil && v > 0 {
				size = v
			}
		}
		p.Texts = append(p.Texts, TextBlock{
			Rect: estimateTextRect(text, top, left, size),
			Text: text,
		})
	}

	for _, m := range imgRe.FindAllStringSubmatch(markup, -1) {
		style := m[1]
		top, topOK := styleValue(style, "top")
		left, leftOK := styleValue(style, "left")
		width, wOK := styleValue(style, "width")
		height, hOK := styleValue(style, "height")
		if !topOK || !leftOK || !wOK || !hOK {
			continue
		}
		p.Images = append(p.Images, ImageBlock{
			Rect: Rect{X0: left, Y0: top, X1: left + width, Y1: top + height},
		})
	}

	return p, nil
}

// RenderRegion rasterizes page n at the given DPI and crops it to r
// (in page points).
func (d *Document) RenderRegion(n int, r Rect, dpi float64) (image.Image, error) {
	if dpi <= 0 {
		dpi = 150
	}
	img, err := d.doc.ImageDPI(n, dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d of %s: %w", n, d.path, err)
	}

	scale := dpi / 72.0
	bounds := img.Bounds()
	crop := image.Rect(
		clamp(int(r.X0*scale), bounds.Min.X, bounds.Max.X),
		clamp(int(r.Y0*scale), bounds.Min.Y, bounds.Max.Y),
		clamp(int(r.X1*scale), bounds.Min.X, bounds.Max.X),
		clamp(int(r.Y1*scale), bounds.Min.Y, bounds.Max.Y),
	)
	if crop.Dx() == 0 || crop.Dy() == 0 {
		return nil, fmt.Errorf("region %+v is outside page %d of %s", r, n, d.path)
	}

	return img.SubImage(crop), nil
}

// styleValue extracts a pt-suffixed CSS property from an inline style string.
func styleValue(style, key string) (float64, bool) {
	idx := strings.Index(style, key+":")
	if idx < 0 {
		return 0, false
	}
	rest := style[idx+len(key)+1:]
	end := strings.IndexAny(rest, ";p")
	if end < 0 {
		end = len(rest)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rest[:end]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// flattenText strips markup from a paragraph body, keeping line breaks.
func flattenText(inner string) string {
	text := tagRe.ReplaceAllStringFunc(inner, func(tag string) string {
		if strings.HasPrefix(tag, "<br") {
			return "\n"
		}
		return ""
	})
	return strings.TrimSpace(html.UnescapeString(text))
}

// estimateTextRect approximates a text block's extent. MuPDF's HTML output
// carries only the top-left corner for text, so the box is derived from the
// font size and line lengths. This is only used for column overlap and gap
// checks, where a rough box is sufficient.
func estimateTextRect(text string, top, left, fontSize float64) Rect {
	lines := strings.Split(text, "\n")
	maxLen := 0
	for _, l := range lines {
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}
	return Rect{
		X0: left,
		Y0: top,
		X1: left + 0.5*fontSize*float64(maxLen),
		Y1: top + 1.2*fontSize*float64(len(lines)),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
