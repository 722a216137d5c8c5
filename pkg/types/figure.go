// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Decision is the outcome of one classification call.
type Decision string

const (
	// DecisionAccept marks a figure as a methodology diagram worth keeping.
	DecisionAccept Decision = "accept"

	// DecisionReject marks a figure as not a methodology diagram. Reject
	// verdicts are still recorded so the fingerprint is never re-classified.
	DecisionReject Decision = "reject"
)

// Verdict is the structured result of the external visual-classification
// call for one figure candidate. Produced at most once per fingerprint.
type Verdict struct {
	// Decision is accept or reject.
	Decision Decision `json:"decision" yaml:"decision"`

	// Tags are free-text style labels (e.g. "flat 2D", "encoder-decoder").
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Summary is a one-paragraph description of the logic the figure shows.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Fingerprint returns the unique key identifying one logical figure across
// reruns: the owning paper ID plus the parsed figure number.
func Fingerprint(paperID string, figureNumber int) string {
	return fmt.Sprintf("%s/fig%d", paperID, figureNumber)
}

// IndexEntry is one durable row in the dataset index. At most one entry per
// fingerprint ever exists; the first recorded verdict wins.
type IndexEntry struct {
	// Fingerprint is the unique key (paper ID, figure number).
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`

	// PaperID is the owning paper's slug.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// FigureNumber is the number parsed from the caption ("Figure 3: ..." → 3).
	FigureNumber int `json:"figure_number" yaml:"figure_number"`

	// ImagePath is the stored composite image, empty for reject entries.
	ImagePath string `json:"image_path,omitempty" yaml:"image_path,omitempty"`

	// Decision is the recorded verdict.
	Decision Decision `json:"decision" yaml:"decision"`

	// Tags are the verdict's style tags.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Summary is the verdict's logic summary.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// CreatedAt is when the entry was committed.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
