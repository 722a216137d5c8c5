// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figure

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/pdiddy/figure-engine/pkg/types"
)

// captionPattern anchors on the token "Figure" (or "Fig.") followed by a
// number and a colon or period. Blocks that merely mention a figure
// mid-sentence do not match.
var captionPattern = regexp.MustCompile(`(?i)^(?:fig\.?|figure)\s*(\d+)\s*[:.]`)

// columnPad widens a narrow caption's column bounds so slightly offset
// figures are still claimed.
const columnPad = 20.0

// wideCaptionRatio is the fraction of page width beyond which a caption is
// treated as spanning both columns.
const wideCaptionRatio = 0.6

// Caption is a caption text block with its parsed figure number.
type Caption struct {
	Rect   Rect
	Text   string
	Number int
}

// Match groups the image blocks claimed by one caption.
type Match struct {
	Caption Caption
	Images  []Rect
}

// FindCaptions scans a page's text blocks for figure captions, returned in
// reading order (top to bottom).
func FindCaptions(texts []TextBlock) []Caption {
	var captions []Caption
	for _, t := range texts {
		m := captionPattern.FindStringSubmatch(t.Text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		captions = append(captions, Caption{Rect: t.Rect, Text: t.Text, Number: n})
	}
	sort.Slice(captions, func(i, j int) bool {
		return captions[i].Rect.Y0 < captions[j].Rect.Y0
	})
	return captions
}

// columnBounds returns the horizontal search range for a caption. A caption
// spanning more than wideCaptionRatio of the page width searches the full
// page; a narrow one searches its own column plus padding.
func columnBounds(c Caption, pageWidth float64) (xMin, xMax float64) {
	if c.Rect.Width() > pageWidth*wideCaptionRatio {
		return 0, pageWidth
	}
	return c.Rect.X0 - columnPad, c.Rect.X1 + columnPad
}

// MatchCaptions associates each image block on the page with its nearest
// caption above or below it, within cfg.MaxCaptionGap vertical points and
// overlapping the caption's column bounds. Images with no caption within
// range are dropped: uncaptioned images are not methodology figures. When
// two captions are equidistant from an image, the one preceding it in
// reading order wins.
func MatchCaptions(p *Page, cfg types.ExtractionConfig) []Match {
	captions := FindCaptions(p.Texts)
	if len(captions) == 0 {
		return nil
	}

	maxGap := cfg.MaxCaptionGap
	if maxGap <= 0 {
		maxGap = 240
	}

	claimed := make(map[int][]Rect, len(captions))

	for _, img := range p.Images {
		best := -1
		bestGap := maxGap
		for ci, cap := range captions {
			xMin, xMax := columnBounds(cap, p.Width)
			if !img.Rect.OverlapsX(Rect{X0: xMin, X1: xMax}) {
				continue
			}
			gap := img.Rect.VerticalGap(cap.Rect)
			if gap > maxGap {
				continue
			}
			// Strictly-less keeps the earlier (reading-order) caption on ties,
			// since captions are sorted top to bottom.
			if best < 0 || gap < bestGap {
				best = ci
				bestGap = gap
			}
		}
		if best >= 0 {
			claimed[best] = append(claimed[best], img.Rect)
		}
	}

	var matches []Match
	for ci, cap := range captions {
		imgs := claimed[ci]
		if len(imgs) == 0 {
			continue
		}
		matches = append(matches, Match{Caption: cap, Images: imgs})
	}
	return matches
}
