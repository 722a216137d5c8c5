// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-engine/internal/discover"
	"github.com/pdiddy/figure-engine/internal/index"
	"github.com/pdiddy/figure-engine/pkg/types"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [query]",
	Short: "Find recent arXiv papers that have not been processed yet",
	Long: `Discover queries the arXiv API for the most recently submitted papers
matching a category query and filters out papers the dataset index has
already completed. With no query the default CS category filter is used.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().String("query", "", "arXiv search query (default: top CS categories)")
	discoverCmd.Flags().Int("max-results", 5, "number of new papers to select")
	discoverCmd.Flags().String("data-dir", "data", "base directory for the dataset index")
	discoverCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	query := cfg.Discovery.Query
	if len(args) > 0 {
		query = strings.Join(args, " ")
	}

	store, err := index.NewStore(cfg.Index)
	if err != nil {
		return err
	}
	defer store.Close()

	processed, err := store.ProcessedPaperIDs(context.Background())
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Discovery.Timeout}
	papers, err := discover.Discover(context.Background(), client, query, cfg.Discovery,
		func(id string) bool { return processed[id] })
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatDiscoverOutput(papers, jsonOutput)
}

func formatDiscoverOutput(papers []types.Paper, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}

	if len(papers) == 0 {
		fmt.Println("No new papers found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-14s  %-60s  %s\n", "ID", "Title", "Published")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, p := range papers {
		title := p.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-60s  %s\n", p.ID, title, p.Published.Format("2006-01-02"))
	}
	fmt.Fprintf(os.Stdout, "\n%d paper(s)\n", len(papers))
	return nil
}
