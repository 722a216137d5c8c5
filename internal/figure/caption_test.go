// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figure

import (
	"testing"

	"github.com/pdiddy/figure-engine/pkg/types"
)

func testExtractionCfg() types.ExtractionConfig {
	return types.ExtractionConfig{
		ClusterThreshold: 2,
		MaxCaptionGap:    240,
		MinRegionDim:     50,
	}
}

// --- FindCaptions ---

func TestFindCaptions(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantNumber int
		wantMatch  bool
	}{
		{"figure colon", "Figure 2: Overview of the proposed encoder-decoder pipeline.", 2, true},
		{"figure period", "Figure 3. The training loop.", 3, true},
		{"fig abbreviation", "Fig. 7: Quantitative comparison across six benchmarks.", 7, true},
		{"fig no dot", "Fig 12: Ablation study.", 12, true},
		{"lowercase", "figure 1: lowercase caption.", 1, true},
		{"no number", "Figure: missing number.", 0, false},
		{"no separator", "Figure 4 shows the results", 0, false},
		{"mid sentence", "As shown in Figure 2: the model...", 0, false},
		{"table caption", "Table 1: Dataset statistics.", 0, false},
		{"body text", "We propose a novel attention mechanism.", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := FindCaptions([]TextBlock{{Text: tt.text, Rect: Rect{X0: 0, Y0: 100, X1: 200, Y1: 110}}})
			if !tt.wantMatch {
				if len(caps) != 0 {
					t.Fatalf("FindCaptions(%q) = %v, want none", tt.text, caps)
				}
				return
			}
			if len(caps) != 1 {
				t.Fatalf("FindCaptions(%q) returned %d captions, want 1", tt.text, len(caps))
			}
			if caps[0].Number != tt.wantNumber {
				t.Errorf("Number = %d, want %d", caps[0].Number, tt.wantNumber)
			}
		})
	}
}

func TestFindCaptionsReadingOrder(t *testing.T) {
	texts := []TextBlock{
		{Text: "Figure 5: Lower caption.", Rect: Rect{X0: 0, Y0: 500, X1: 200, Y1: 510}},
		{Text: "Figure 4: Upper caption.", Rect: Rect{X0: 0, Y0: 100, X1: 200, Y1: 110}},
	}
	caps := FindCaptions(texts)
	if len(caps) != 2 {
		t.Fatalf("got %d captions, want 2", len(caps))
	}
	if caps[0].Number != 4 || caps[1].Number != 5 {
		t.Errorf("captions not in reading order: %v", caps)
	}
}

// --- MatchCaptions ---

func TestMatchCaptionsClaimsNearbyImage(t *testing.T) {
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 2: Overview of the proposed encoder-decoder pipeline.", Rect: Rect{X0: 50, Y0: 400, X1: 550, Y1: 412}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 60, Y0: 200, X1: 540, Y1: 390}},
		},
	}

	matches := MatchCaptions(page, testExtractionCfg())
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Caption.Number != 2 {
		t.Errorf("matched caption number = %d, want 2", matches[0].Caption.Number)
	}
	if len(matches[0].Images) != 1 {
		t.Errorf("claimed %d images, want 1", len(matches[0].Images))
	}
}

func TestMatchCaptionsDropsUncaptionedImages(t *testing.T) {
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "We describe the method below.", Rect: Rect{X0: 50, Y0: 400, X1: 550, Y1: 412}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 60, Y0: 200, X1: 540, Y1: 390}},
		},
	}

	if matches := MatchCaptions(page, testExtractionCfg()); matches != nil {
		t.Errorf("got %v, want no matches for an uncaptioned image", matches)
	}
}

func TestMatchCaptionsRespectsVerticalBound(t *testing.T) {
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 1: A distant caption.", Rect: Rect{X0: 50, Y0: 700, X1: 550, Y1: 712}},
		},
		Images: []ImageBlock{
			// 600 points above the caption, past the 240pt bound.
			{Rect: Rect{X0: 60, Y0: 40, X1: 540, Y1: 100}},
		},
	}

	if matches := MatchCaptions(page, testExtractionCfg()); matches != nil {
		t.Errorf("image beyond max caption gap should not be claimed, got %v", matches)
	}
}

func TestMatchCaptionsColumnBounds(t *testing.T) {
	// Narrow caption in the left column must not claim a right-column image.
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 3: Left column figure.", Rect: Rect{X0: 40, Y0: 400, X1: 280, Y1: 412}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 50, Y0: 250, X1: 270, Y1: 390}},
			{Rect: Rect{X0: 340, Y0: 250, X1: 560, Y1: 390}},
		},
	}

	matches := MatchCaptions(page, testExtractionCfg())
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if len(matches[0].Images) != 1 {
		t.Fatalf("claimed %d images, want only the left-column one", len(matches[0].Images))
	}
	if matches[0].Images[0].X0 != 50 {
		t.Errorf("claimed wrong image: %+v", matches[0].Images[0])
	}
}

func TestMatchCaptionsEquidistantTieBreak(t *testing.T) {
	// An image exactly between two captions goes to the preceding one.
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 1: Above the image.", Rect: Rect{X0: 50, Y0: 90, X1: 550, Y1: 100}},
			{Text: "Figure 2: Below the image.", Rect: Rect{X0: 50, Y0: 400, X1: 550, Y1: 410}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 60, Y0: 200, X1: 540, Y1: 300}},
		},
	}

	matches := MatchCaptions(page, testExtractionCfg())
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Caption.Number != 1 {
		t.Errorf("tie should go to the preceding caption, got Figure %d", matches[0].Caption.Number)
	}
}

func TestMatchCaptionsNearestWins(t *testing.T) {
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 1: Far caption.", Rect: Rect{X0: 50, Y0: 80, X1: 550, Y1: 90}},
			{Text: "Figure 2: Near caption.", Rect: Rect{X0: 50, Y0: 330, X1: 550, Y1: 340}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 60, Y0: 200, X1: 540, Y1: 300}},
		},
	}

	matches := MatchCaptions(page, testExtractionCfg())
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Caption.Number != 2 {
		t.Errorf("nearest caption should win, got Figure %d", matches[0].Caption.Number)
	}
}

func TestMatchCaptionsMultipleBlocksOneCaption(t *testing.T) {
	page := &Page{
		Number: 0,
		Width:  612,
		Height: 792,
		Texts: []TextBlock{
			{Text: "Figure 2: Overview of the proposed encoder-decoder pipeline.", Rect: Rect{X0: 50, Y0: 400, X1: 550, Y1: 412}},
		},
		Images: []ImageBlock{
			{Rect: Rect{X0: 60, Y0: 250, X1: 290, Y1: 390}},
			{Rect: Rect{X0: 310, Y0: 250, X1: 540, Y1: 390}},
		},
	}

	matches := MatchCaptions(page, testExtractionCfg())
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if len(matches[0].Images) != 2 {
		t.Errorf("claimed %d images, want 2 adjacent blocks", len(matches[0].Images))
	}
}
