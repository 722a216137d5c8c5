// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads paper PDFs and writes metadata records.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figure-engine/internal/httputil"
	"github.com/pdiddy/figure-engine/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// BatchResult holds the outcome of a batch fetch run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any downloads failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// PDFPath returns the canonical local path for a paper's PDF.
func PDFPath(cfg types.FetchConfig, paperID string) string {
	return filepath.Join(cfg.PapersDir, rawDir, paperID+".pdf")
}

// FetchPDF downloads one paper's PDF and writes its metadata sidecar. If the
// PDF already exists on disk the download is skipped; the skipped return
// value reports which. On success paper.PDFPath is set to the local path.
func FetchPDF(ctx context.Context, client *http.Client, paper *types.Paper, cfg types.FetchConfig, w io.Writer) (skipped bool, err error) {
	pdfPath := PDFPath(cfg, paper.ID)
	metaPath := filepath.Join(cfg.PapersDir, metadataDir, paper.ID+".yaml")

	if _, statErr := os.Stat(pdfPath); statErr == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", paper.ID)
		paper.PDFPath = pdfPath
		return true, nil
	}

	if paper.SourceURL == "" {
		return false, fmt.Errorf("paper %s has no source URL", paper.ID)
	}

	for _, dir := range []string{
		filepath.Join(cfg.PapersDir, rawDir),
		filepath.Join(cfg.PapersDir, metadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "downloading: %s\n", paper.ID)
	if err := downloadFile(ctx, client, paper.SourceURL, pdfPath, cfg); err != nil {
		return false, fmt.Errorf("downloading %s: %w", paper.ID, err)
	}
	paper.PDFPath = pdfPath

	if err := writeMetadata(paper, metaPath); err != nil {
		return false, fmt.Errorf("writing metadata for %s: %w", paper.ID, err)
	}
	return false, nil
}

// FetchBatch downloads multiple papers, printing per-paper status and
// returning a summary. It continues after individual failures and applies
// a delay between consecutive downloads.
func FetchBatch(ctx context.Context, client *http.Client, papers []*types.Paper, cfg types.FetchConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, p := range papers {
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(cfg.DownloadDelay):
			}
		}
		wasSkipped, err := FetchPDF(ctx, client, p, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", p.ID, err)
			result.Failed++
			continue
		}
		if wasSkipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
	}
	fmt.Fprintf(w, "\nFetch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// downloadFile fetches url to destPath using a temporary file so an
// interrupted download never leaves a partial PDF behind. Rate limits and
// server errors are retried before giving up.
func downloadFile(ctx context.Context, client *http.Client, url, destPath string, cfg types.FetchConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// writeMetadata marshals the Paper record to a YAML sidecar.
func writeMetadata(paper *types.Paper, path string) error {
	data, err := yaml.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
