// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-engine/internal/classify"
	"github.com/pdiddy/figure-engine/internal/discover"
	"github.com/pdiddy/figure-engine/internal/fetch"
	"github.com/pdiddy/figure-engine/internal/index"
	"github.com/pdiddy/figure-engine/internal/pipeline"
	"github.com/pdiddy/figure-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Run the full pipeline: discover, fetch, extract, classify, index",
	Long: `Run chains every stage: it discovers recent arXiv papers that the index
has not completed, downloads their PDFs, extracts caption-anchored figure
candidates, classifies them concurrently, and commits verdicts to the
dataset index. Interrupted runs resume where they left off; already-indexed
figures are never re-classified.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("query", "", "arXiv search query (default: top CS categories)")
	runCmd.Flags().Int("max-results", 5, "number of new papers to process")
	runCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	runCmd.Flags().String("papers-dir", "papers", "base directory for papers")
	runCmd.Flags().String("data-dir", "data", "base directory for the dataset index")
	runCmd.Flags().Int("cluster-threshold", 2, "maximum sub-images per figure before rejection")
	runCmd.Flags().String("model", "", "vision model identifier")
	runCmd.Flags().String("api-key", "", "OpenRouter API key (overrides .secrets/ and environment)")
	runCmd.Flags().Int("workers", 4, "classification worker pool size")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)
	if len(args) > 0 {
		cfg.Discovery.Query = strings.Join(args, " ")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := index.NewStore(cfg.Index)
	if err != nil {
		return err
	}
	defer store.Close()

	papers, err := discoverPapers(ctx, store, cfg)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Println("No new papers to process.")
		return nil
	}
	logger.Info().Int("papers", len(papers)).Msg("starting pipeline")

	client := &http.Client{Timeout: cfg.Fetch.Timeout}
	result := fetch.FetchBatch(ctx, client, papers, cfg.Fetch, os.Stderr)
	if result.Failed > 0 {
		logger.Warn().Int("failed", result.Failed).Msg("some PDFs could not be downloaded")
	}

	fetched := papers[:0]
	for _, p := range papers {
		if p.PDFPath != "" {
			fetched = append(fetched, p)
		}
	}

	backend := classify.NewOpenRouterBackend(cfg.Classify)
	pool := classify.NewPool(backend, cfg.Classify, logger)
	runner := pipeline.NewRunner(store, pool, nil, cfg, logger)

	bar := progressbar.NewOptions(len(fetched),
		progressbar.OptionSetDescription("processing papers"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	summary := runner.Run(ctx, fetched, func(p *types.Paper, s pipeline.PaperSummary, err error) {
		bar.Add(1)
	})

	fmt.Fprintf(os.Stdout, "\nRun summary: %d paper(s), %d candidate(s): %d accepted, %d rejected, %d skipped, %d failed\n",
		summary.Papers, summary.Candidates, summary.Accepted, summary.Rejected, summary.Skipped, summary.Failed)
	if summary.PaperErrs > 0 {
		return fmt.Errorf("%d paper(s) failed processing", summary.PaperErrs)
	}
	return nil
}

// discoverPapers selects papers the index has not completed yet.
func discoverPapers(ctx context.Context, store *index.Store, cfg types.PipelineConfig) ([]*types.Paper, error) {
	processed, err := store.ProcessedPaperIDs(ctx)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Discovery.Timeout}
	found, err := discover.Discover(ctx, client, cfg.Discovery.Query, cfg.Discovery,
		func(id string) bool { return processed[id] })
	if err != nil {
		return nil, err
	}

	papers := make([]*types.Paper, len(found))
	for i := range found {
		papers[i] = &found[i]
	}
	return papers, nil
}
