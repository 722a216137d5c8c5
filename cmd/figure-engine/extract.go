// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-engine/internal/figure"
	"github.com/pdiddy/figure-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-files...]",
	Short: "List figure candidates found in PDFs without classifying them",
	Long: `Extract opens each PDF, matches captions to image blocks, clusters
sub-figures, and prints the surviving candidates. No classification call is
made and nothing is written to the dataset index, so this is a dry run for
tuning the extraction settings.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Int("cluster-threshold", 2, "maximum sub-images per figure before rejection")
	extractCmd.Flags().Bool("json", false, "output candidates as JSON")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more PDF files")
	}

	cfg := pipelineConfig(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var all []figure.Candidate
	for _, path := range args {
		candidates, err := extractCandidates(path, cfg.Extraction)
		if err != nil {
			return err
		}
		all = append(all, candidates...)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	if len(all) == 0 {
		fmt.Println("No figure candidates found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-5s  %-4s  %-6s  %s\n", "Fingerprint", "Page", "Fig", "Parts", "Caption")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, c := range all {
		caption := c.Caption
		if len(caption) > 50 {
			caption = caption[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-20s  %-5d  %-4d  %-6d  %s\n",
			c.Fingerprint(), c.Page, c.Number, len(c.Parts), caption)
	}
	fmt.Fprintf(os.Stdout, "\n%d candidate(s)\n", len(all))
	return nil
}

func extractCandidates(path string, cfg types.ExtractionConfig) ([]figure.Candidate, error) {
	doc, err := figure.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	paperID := strings.TrimSuffix(filepath.Base(path), ".pdf")

	var candidates []figure.Candidate
	for n := 0; n < doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			logger.Warn().Str("file", path).Int("page", n).Err(err).Msg("skipping undecodable page")
			continue
		}
		matches := figure.MatchCaptions(page, cfg)
		candidates = append(candidates, figure.Cluster(paperID, n, matches, cfg)...)
	}
	return candidates, nil
}
