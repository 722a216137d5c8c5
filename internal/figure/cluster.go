// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figure

import (
	"sort"

	"github.com/pdiddy/figure-engine/pkg/types"
)

// Candidate is a clustered, caption-labeled figure region eligible for
// classification. Immutable once produced by Cluster.
type Candidate struct {
	// PaperID is the owning paper's slug.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Page is the zero-based page index the figure appears on.
	Page int `json:"page" yaml:"page"`

	// Bounds is the composite bounding box: the union of all Parts.
	Bounds Rect `json:"bounds" yaml:"bounds"`

	// Caption is the matched caption text.
	Caption string `json:"caption" yaml:"caption"`

	// Number is the figure number parsed from the caption.
	Number int `json:"number" yaml:"number"`

	// Parts are the constituent sub-image boxes, length >= 1, in the order
	// the blocks appeared on the page.
	Parts []Rect `json:"parts" yaml:"parts"`
}

// Fingerprint returns the candidate's unique key across reruns.
func (c Candidate) Fingerprint() string {
	return types.Fingerprint(c.PaperID, c.Number)
}

// Cluster merges caption-sharing image blocks on one page into composite
// candidates. Blocks matched to captions carrying the same figure number are
// merged into a single candidate whose bounds are the union of all parts.
//
// Two structural rules reject a cluster before any external call is spent:
// more constituent sub-images than cfg.ClusterThreshold (large visual grids
// are results panels, not architecture diagrams), and a composite box
// smaller than cfg.MinRegionDim in either dimension. Deterministic and
// side-effect free: the same blocks always produce the same candidates.
func Cluster(paperID string, page int, matches []Match, cfg types.ExtractionConfig) []Candidate {
	threshold := cfg.ClusterThreshold
	if threshold <= 0 {
		threshold = 2
	}
	minDim := cfg.MinRegionDim
	if minDim <= 0 {
		minDim = 50
	}

	byNumber := make(map[int]*Candidate)
	for _, m := range matches {
		c, ok := byNumber[m.Caption.Number]
		if !ok {
			c = &Candidate{
				PaperID: paperID,
				Page:    page,
				Caption: m.Caption.Text,
				Number:  m.Caption.Number,
			}
			byNumber[m.Caption.Number] = c
		}
		for _, r := range m.Images {
			if len(c.Parts) == 0 {
				c.Bounds = r
			} else {
				c.Bounds = c.Bounds.Union(r)
			}
			c.Parts = append(c.Parts, r)
		}
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var candidates []Candidate
	for _, n := range numbers {
		c := byNumber[n]
		if len(c.Parts) > threshold {
			continue
		}
		if c.Bounds.Width() < minDim || c.Bounds.Height() < minDim {
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates
}
