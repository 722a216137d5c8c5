// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figure-engine/internal/fetch"
	"github.com/pdiddy/figure-engine/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [arxiv-ids...]",
	Short: "Download paper PDFs from arXiv",
	Long: `Fetch downloads the PDFs for the given arXiv IDs into papers/raw/ and
writes a metadata record per paper. IDs with an existing metadata record
reuse its source URL; otherwise the standard arXiv PDF URL is assumed.
Already-downloaded PDFs are skipped.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	fetchCmd.Flags().String("papers-dir", "papers", "base directory for papers")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more arXiv IDs")
	}

	cfg := pipelineConfig(cmd)
	papers := make([]*types.Paper, 0, len(args))
	for _, id := range args {
		papers = append(papers, loadOrStubPaper(cfg.Fetch, id))
	}

	client := &http.Client{Timeout: cfg.Fetch.Timeout}
	result := fetch.FetchBatch(context.Background(), client, papers, cfg.Fetch, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed to download", result.Failed)
	}
	return nil
}

// loadOrStubPaper reuses the metadata record written by an earlier discover
// or fetch run; absent one, a minimal record pointing at the canonical arXiv
// PDF URL is built.
func loadOrStubPaper(cfg types.FetchConfig, id string) *types.Paper {
	metaPath := filepath.Join(cfg.PapersDir, "metadata", id+".yaml")
	if data, err := os.ReadFile(metaPath); err == nil {
		var p types.Paper
		if yaml.Unmarshal(data, &p) == nil && p.ID != "" {
			return &p
		}
	}
	return &types.Paper{
		ID:        id,
		SourceURL: "https://arxiv.org/pdf/" + id,
		Status:    types.StatusPending,
	}
}
