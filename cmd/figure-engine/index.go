// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figure-engine/internal/index"
	"github.com/pdiddy/figure-engine/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and export the dataset index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dataset counts",
	RunE:  runIndexStats,
}

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a Markdown listing of accepted figures",
	Long: `Export writes data/index/index.md: one section per accepted figure with
its image link, logic summary, and style tags. Use --stdout to print
instead of writing the file.`,
	RunE: runIndexExport,
}

func init() {
	indexCmd.PersistentFlags().String("data-dir", "data", "base directory for the dataset index")
	indexExportCmd.Flags().Bool("stdout", false, "print to stdout instead of writing data/index/index.md")

	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexExportCmd)
	rootCmd.AddCommand(indexCmd)
}

func openStore(cmd *cobra.Command) (*index.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = "data"
	}
	return index.NewStore(types.IndexConfig{DataDir: dataDir})
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Figures: %d accepted, %d rejected\n", stats.Accepted, stats.Rejected)
	fmt.Fprintln(os.Stdout, "Papers:")
	for _, status := range []types.PaperStatus{
		types.StatusPending, types.StatusExtracted, types.StatusDone, types.StatusFailed,
	} {
		if n := stats.Papers[status]; n > 0 {
			fmt.Fprintf(os.Stdout, "  %-10s %d\n", status, n)
		}
	}
	return nil
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	toStdout, _ := cmd.Flags().GetBool("stdout")
	if toStdout {
		return store.ExportMarkdown(context.Background(), os.Stdout)
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = "data"
	}
	path := filepath.Join(dataDir, "index", "index.md")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := store.ExportMarkdown(context.Background(), f); err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}
