// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figure-engine/internal/httputil"
	"github.com/pdiddy/figure-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func testFetchCfg(dir string) types.FetchConfig {
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "figure-engine-test/0.1"},
		PapersDir:  dir,
	}
}

func TestFetchPDFDownloadsAndWritesMetadata(t *testing.T) {
	pdfBody := []byte("%PDF-1.5 fake body")
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write(pdfBody)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := testFetchCfg(dir)
	paper := &types.Paper{
		ID:        "2301.07041",
		Title:     "A Survey of Diagrams",
		SourceURL: server.URL + "/pdf/2301.07041",
		Status:    types.StatusPending,
	}

	var out bytes.Buffer
	skipped, err := FetchPDF(context.Background(), server.Client(), paper, cfg, &out)
	if err != nil {
		t.Fatalf("FetchPDF: %v", err)
	}
	if skipped {
		t.Error("expected download, got skipped")
	}
	if gotUA != "figure-engine-test/0.1" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/pdf" {
		t.Errorf("Accept = %q", gotAccept)
	}

	data, err := os.ReadFile(filepath.Join(dir, "raw", "2301.07041.pdf"))
	if err != nil {
		t.Fatalf("reading downloaded PDF: %v", err)
	}
	if !bytes.Equal(data, pdfBody) {
		t.Error("downloaded PDF does not match served body")
	}
	if paper.PDFPath != filepath.Join(dir, "raw", "2301.07041.pdf") {
		t.Errorf("PDFPath = %q", paper.PDFPath)
	}

	metaData, err := os.ReadFile(filepath.Join(dir, "metadata", "2301.07041.yaml"))
	if err != nil {
		t.Fatalf("reading metadata: %v", err)
	}
	var got types.Paper
	if err := yaml.Unmarshal(metaData, &got); err != nil {
		t.Fatalf("unmarshaling metadata: %v", err)
	}
	if got.ID != paper.ID || got.Title != paper.Title {
		t.Errorf("metadata = %+v, want ID/Title of %+v", got, paper)
	}
}

func TestFetchPDFSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := testFetchCfg(dir)
	if err := os.MkdirAll(filepath.Join(dir, "raw"), 0o755); err != nil {
		t.Fatal(err)
	}
	pdfPath := filepath.Join(dir, "raw", "2301.07041.pdf")
	if err := os.WriteFile(pdfPath, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	paper := &types.Paper{ID: "2301.07041", SourceURL: server.URL}
	var out bytes.Buffer
	skipped, err := FetchPDF(context.Background(), server.Client(), paper, cfg, &out)
	if err != nil {
		t.Fatalf("FetchPDF: %v", err)
	}
	if !skipped {
		t.Error("expected skip for existing PDF")
	}
	if calls != 0 {
		t.Errorf("server called %d times, want 0", calls)
	}
	if paper.PDFPath != pdfPath {
		t.Errorf("PDFPath = %q, want %q", paper.PDFPath, pdfPath)
	}
}

func TestFetchPDFRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	dir := t.TempDir()
	paper := &types.Paper{ID: "2302.00001", SourceURL: server.URL}
	var out bytes.Buffer
	skipped, err := FetchPDF(context.Background(), server.Client(), paper, testFetchCfg(dir), &out)
	if err != nil {
		t.Fatalf("FetchPDF: %v", err)
	}
	if skipped {
		t.Error("expected download after retry")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server called %d times, want 2", n)
	}
}

func TestFetchPDFNoSourceURL(t *testing.T) {
	paper := &types.Paper{ID: "2302.00002"}
	var out bytes.Buffer
	_, err := FetchPDF(context.Background(), http.DefaultClient, paper, testFetchCfg(t.TempDir()), &out)
	if err == nil {
		t.Fatal("expected error for missing source URL")
	}
}

func TestFetchPDFLeavesNoPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	paper := &types.Paper{ID: "2302.00003", SourceURL: server.URL}
	var out bytes.Buffer
	_, err := FetchPDF(context.Background(), server.Client(), paper, testFetchCfg(dir), &out)
	if err == nil {
		t.Fatal("expected error for 404")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "raw"))
	if err != nil {
		t.Fatalf("reading raw dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("raw dir has %d entries after failed download, want 0", len(entries))
	}
}

func TestFetchBatchContinuesAfterFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := testFetchCfg(dir)
	if err := os.MkdirAll(filepath.Join(dir, "raw"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "raw", "existing.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	papers := []*types.Paper{
		{ID: "good1", SourceURL: server.URL + "/good1"},
		{ID: "bad", SourceURL: server.URL + "/bad"},
		{ID: "existing", SourceURL: server.URL + "/existing"},
		{ID: "good2", SourceURL: server.URL + "/good2"},
	}

	var out bytes.Buffer
	result := FetchBatch(context.Background(), server.Client(), papers, cfg, &out)
	if result.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", result.Downloaded)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if !result.HasFailures() {
		t.Error("HasFailures() = false, want true")
	}
	if !strings.Contains(out.String(), "2 downloaded, 1 skipped, 1 failed") {
		t.Errorf("summary missing from output:\n%s", out.String())
	}
}

func TestFetchBatchHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := testFetchCfg(dir)
	cfg.DownloadDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	papers := []*types.Paper{
		{ID: "first", SourceURL: server.URL},
		{ID: "second", SourceURL: server.URL},
	}

	done := make(chan BatchResult, 1)
	go func() {
		var out bytes.Buffer
		done <- FetchBatch(ctx, server.Client(), papers, cfg, &out)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if result.Downloaded != 1 {
			t.Errorf("Downloaded = %d, want 1 before cancellation", result.Downloaded)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("FetchBatch did not return after cancellation")
	}
}
