// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package figure locates candidate figure regions inside a PDF page, ties
// them to their caption text, and clusters multi-panel figures.
package figure

// Rect is an axis-aligned rectangle in PDF points. The origin is the top-left
// corner of the page, so Y0 is the top edge and Y1 the bottom edge.
type Rect struct {
	X0 float64 `json:"x0" yaml:"x0"`
	Y0 float64 `json:"y0" yaml:"y0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	if o.X0 < r.X0 {
		r.X0 = o.X0
	}
	if o.Y0 < r.Y0 {
		r.Y0 = o.Y0
	}
	if o.X1 > r.X1 {
		r.X1 = o.X1
	}
	if o.Y1 > r.Y1 {
		r.Y1 = o.Y1
	}
	return r
}

// OverlapsX reports whether r and o share any horizontal extent.
func (r Rect) OverlapsX(o Rect) bool {
	return max(r.X0, o.X0) < min(r.X1, o.X1)
}

// VerticalGap returns the vertical distance between r and o: zero when they
// overlap vertically, otherwise the size of the gap between them.
func (r Rect) VerticalGap(o Rect) float64 {
	if r.Y1 < o.Y0 {
		return o.Y0 - r.Y1
	}
	if o.Y1 < r.Y0 {
		return r.Y0 - o.Y1
	}
	return 0
}

// TextBlock is one block of page text with its bounding box.
type TextBlock struct {
	Rect Rect
	Text string
}

// ImageBlock is one raw raster or vector region on a page.
type ImageBlock struct {
	Rect Rect
}

// Page holds the decoded blocks of a single PDF page, in document order.
type Page struct {
	// Number is the zero-based page index.
	Number int

	// Width and Height are the page dimensions in PDF points.
	Width  float64
	Height float64

	Texts  []TextBlock
	Images []ImageBlock
}
