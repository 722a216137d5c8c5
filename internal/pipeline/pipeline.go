// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the per-paper figure pipeline: decode pages, match
// captions to image blocks, cluster sub-figures, classify the survivors, and
// commit verdicts to the index store.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pdiddy/figure-engine/internal/classify"
	"github.com/pdiddy/figure-engine/internal/figure"
	"github.com/pdiddy/figure-engine/internal/index"
	"github.com/pdiddy/figure-engine/pkg/types"
)

// Doc is an open PDF document. *figure.Document satisfies it; tests provide
// synthetic pages without touching MuPDF.
type Doc interface {
	NumPages() int
	Page(n int) (*figure.Page, error)
	RenderRegion(n int, r figure.Rect, dpi float64) (image.Image, error)
	Close() error
}

// Opener opens a paper's PDF at the given path.
type Opener func(path string) (Doc, error)

// OpenDocument is the production Opener backed by MuPDF.
func OpenDocument(path string) (Doc, error) {
	return figure.Open(path)
}

// PaperSummary reports what happened to one paper's candidates.
type PaperSummary struct {
	PaperID string

	// Candidates counts clusters that survived the structural filters.
	Candidates int

	// Skipped counts candidates whose fingerprint already had a verdict.
	Skipped int

	// Accepted and Rejected count verdicts committed this run.
	Accepted int
	Rejected int

	// Failed counts candidates with no verdict (render failure, exhausted
	// retries, or a permanent backend error). Failed candidates are not
	// persisted, so a later run retries them.
	Failed int

	// PagesSkipped counts pages that could not be decoded.
	PagesSkipped int
}

// RunSummary aggregates paper summaries for a batch run.
type RunSummary struct {
	Papers    int
	PaperErrs int
	Candidates,
	Skipped,
	Accepted,
	Rejected,
	Failed int
}

func (r *RunSummary) add(s PaperSummary) {
	r.Papers++
	r.Candidates += s.Candidates
	r.Skipped += s.Skipped
	r.Accepted += s.Accepted
	r.Rejected += s.Rejected
	r.Failed += s.Failed
}

// Runner wires the extraction, classification, and index stages together.
type Runner struct {
	store *index.Store
	pool  *classify.Pool
	open  Opener
	cfg   types.PipelineConfig
	log   zerolog.Logger
}

// NewRunner builds a Runner. If open is nil the MuPDF-backed OpenDocument
// is used.
func NewRunner(store *index.Store, pool *classify.Pool, open Opener, cfg types.PipelineConfig, log zerolog.Logger) *Runner {
	if open == nil {
		open = OpenDocument
	}
	return &Runner{store: store, pool: pool, open: open, cfg: cfg, log: log}
}

// ProcessPaper runs the full pipeline over one fetched paper. The paper's
// status advances to done only when every surviving candidate has a recorded
// verdict; otherwise it stays extracted so the next run retries the gaps.
func (r *Runner) ProcessPaper(ctx context.Context, paper *types.Paper) (PaperSummary, error) {
	summary := PaperSummary{PaperID: paper.ID}

	if err := r.store.UpsertPaper(ctx, *paper); err != nil {
		return summary, err
	}

	doc, err := r.open(paper.PDFPath)
	if err != nil {
		r.store.SetPaperStatus(ctx, paper.ID, types.StatusFailed)
		return summary, fmt.Errorf("opening %s: %w", paper.ID, err)
	}
	defer doc.Close()

	candidates := r.extract(doc, paper.ID, &summary)
	summary.Candidates = len(candidates)

	tasks, renderFailed, err := r.prepare(ctx, doc, candidates, &summary)
	if err != nil {
		return summary, err
	}
	summary.Failed += renderFailed

	for _, res := range r.pool.Run(ctx, tasks) {
		if res.Err != nil {
			r.log.Warn().Str("fingerprint", res.Task.Candidate.Fingerprint()).
				Err(res.Err).Msg("candidate left unclassified")
			summary.Failed++
			continue
		}
		if err := r.commit(ctx, res, &summary); err != nil {
			return summary, err
		}
	}

	status := types.StatusDone
	if summary.Failed > 0 {
		status = types.StatusExtracted
	}
	if err := r.store.SetPaperStatus(ctx, paper.ID, status); err != nil {
		return summary, err
	}
	paper.Status = status

	r.log.Info().Str("paper", paper.ID).
		Int("candidates", summary.Candidates).
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("paper processed")
	return summary, nil
}

// extract walks every page and collects surviving candidates. Pages that
// fail to decode are skipped so one bad page never sinks the paper.
func (r *Runner) extract(doc Doc, paperID string, summary *PaperSummary) []figure.Candidate {
	var candidates []figure.Candidate
	for n := 0; n < doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			r.log.Warn().Str("paper", paperID).Int("page", n).
				Err(err).Msg("skipping undecodable page")
			summary.PagesSkipped++
			continue
		}
		matches := figure.MatchCaptions(page, r.cfg.Extraction)
		candidates = append(candidates, figure.Cluster(paperID, n, matches, r.cfg.Extraction)...)
	}
	return candidates
}

// prepare filters out already-indexed candidates and renders the rest to PNG
// payloads. Clustering is per page, so a figure number repeated across pages
// produces multiple candidates with one fingerprint; only the first is
// dispatched. Candidates that fail to render are counted failed and retried
// on a later run.
func (r *Runner) prepare(ctx context.Context, doc Doc, candidates []figure.Candidate, summary *PaperSummary) ([]classify.Task, int, error) {
	var tasks []classify.Task
	failed := 0
	queued := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		fp := c.Fingerprint()
		if queued[fp] {
			summary.Skipped++
			continue
		}
		done, err := r.store.Contains(ctx, fp)
		if err != nil {
			return nil, failed, err
		}
		if done {
			summary.Skipped++
			continue
		}
		queued[fp] = true

		img, err := doc.RenderRegion(c.Page, c.Bounds, r.cfg.Extraction.RenderDPI)
		if err != nil {
			r.log.Warn().Str("fingerprint", c.Fingerprint()).
				Err(err).Msg("rendering failed")
			failed++
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			r.log.Warn().Str("fingerprint", c.Fingerprint()).
				Err(err).Msg("encoding failed")
			failed++
			continue
		}
		tasks = append(tasks, classify.Task{Candidate: c, ImagePNG: buf.Bytes()})
	}
	return tasks, failed, nil
}

// commit records one verdict. Accepted figures keep their rendered image on
// disk; rejected ones are recorded fingerprint-only so reruns skip them.
func (r *Runner) commit(ctx context.Context, res classify.Result, summary *PaperSummary) error {
	c := res.Task.Candidate
	entry := types.IndexEntry{
		Fingerprint:  c.Fingerprint(),
		PaperID:      c.PaperID,
		FigureNumber: c.Number,
		Decision:     res.Verdict.Decision,
		Tags:         res.Verdict.Tags,
		Summary:      res.Verdict.Summary,
	}

	if res.Verdict.Decision == types.DecisionAccept {
		path, err := r.saveImage(c, res.Task.ImagePNG)
		if err != nil {
			return err
		}
		entry.ImagePath = path
	}

	inserted, err := r.store.Upsert(ctx, entry)
	if err != nil {
		return err
	}
	if !inserted {
		// Another worker or an earlier run won the race; the first verdict stands.
		summary.Skipped++
		return nil
	}
	switch res.Verdict.Decision {
	case types.DecisionAccept:
		summary.Accepted++
	default:
		summary.Rejected++
	}
	return nil
}

func (r *Runner) saveImage(c figure.Candidate, data []byte) (string, error) {
	dir := r.store.FiguresDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating figures directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_fig%d.png", c.PaperID, c.Number))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing figure image: %w", err)
	}
	return path, nil
}

// Run processes a batch of papers, continuing after per-paper failures.
// onPaper, if non-nil, is called after each paper with its summary or error.
func (r *Runner) Run(ctx context.Context, papers []*types.Paper, onPaper func(*types.Paper, PaperSummary, error)) RunSummary {
	var run RunSummary
	for _, p := range papers {
		if ctx.Err() != nil {
			break
		}
		summary, err := r.ProcessPaper(ctx, p)
		if err != nil {
			r.log.Error().Str("paper", p.ID).Err(err).Msg("paper failed")
			run.PaperErrs++
		}
		run.add(summary)
		if onPaper != nil {
			onPaper(p, summary, err)
		}
	}
	return run
}
