// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the figure-engine pipeline.
package types

import "time"

// PaperStatus tracks a paper's progress through the pipeline.
type PaperStatus string

const (
	// StatusPending means the paper has been discovered but not yet processed.
	StatusPending PaperStatus = "pending"

	// StatusExtracted means figure candidates have been produced but not all
	// of them have a recorded verdict yet.
	StatusExtracted PaperStatus = "extracted"

	// StatusDone means every surviving candidate has a recorded verdict.
	StatusDone PaperStatus = "done"

	// StatusFailed means the paper's PDF could not be fetched or decoded.
	StatusFailed PaperStatus = "failed"
)

// Paper holds metadata and file paths for a discovered paper. Papers are
// created by the discovery stage and mutated only by advancing Status;
// they are never deleted.
type Paper struct {
	// ID is a slug derived from the paper identifier (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as returned by the discovery backend.
	Title string `json:"title" yaml:"title"`

	// Categories lists the paper's subject tags (e.g. "cs.CV", "cs.LG").
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// SourceURL is the URL from which the PDF is (or was) downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// PDFPath is the local filesystem path to the downloaded PDF.
	// Empty until the fetch stage has run.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Published is the publication or preprint date.
	Published time.Time `json:"published" yaml:"published"`

	// Status tracks pipeline progress: pending, extracted, done, or failed.
	Status PaperStatus `json:"status" yaml:"status"`
}
