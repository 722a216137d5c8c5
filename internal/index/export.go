// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pdiddy/figure-engine/pkg/types"
)

// ExportMarkdown writes a human-readable dataset index of all accepted
// figures, newest first. Entries are read-only; rendering never mutates
// the store.
func (s *Store) ExportMarkdown(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("reading entries for export: %w", err)
	}

	var accepted []types.IndexEntry
	for _, e := range entries {
		if e.Decision == types.DecisionAccept {
			accepted = append(accepted, e)
		}
	}

	fmt.Fprintf(w, "# Dataset Index\n\n")
	fmt.Fprintf(w, "Total Figures: %d\n\n---\n\n", len(accepted))

	for _, e := range accepted {
		name := filepath.Base(e.ImagePath)
		fmt.Fprintf(w, "### %s\n", e.Fingerprint)
		if e.ImagePath != "" {
			fmt.Fprintf(w, "![%s](%s/%s)\n\n", name, figuresDir, name)
		}
		if e.Summary != "" {
			fmt.Fprintf(w, "- **Logic**: %s\n", e.Summary)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(w, "- **Tags**: `%s`\n", strings.Join(e.Tags, "`, `"))
		}
		fmt.Fprintf(w, "\n---\n\n")
	}
	return nil
}
