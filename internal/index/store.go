// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index persists classified figures in a durable, fingerprint-keyed
// SQLite table. The store is the sole source of truth for already-done work:
// its Contains check makes interrupted runs resumable, and its Upsert is a
// no-op on duplicate fingerprints so re-processing a paper never creates
// duplicates.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/figure-engine/pkg/types"
)

const (
	indexDir   = "index"
	figuresDir = "figures"
	dbFile     = "figures.db"
)

// Store manages the dataset index SQLite database.
type Store struct {
	db      *sql.DB
	dataDir string
}

// NewStore opens or creates the index database at dataDir/index/figures.db.
// It creates the schema if it does not exist.
func NewStore(cfg types.IndexConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dataDir: cfg.DataDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FiguresDir returns the directory where accepted composite images live.
func (s *Store) FiguresDir() string {
	return filepath.Join(s.dataDir, figuresDir)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			categories TEXT,
			source_url TEXT,
			pdf_path TEXT,
			published TEXT,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS figures (
			fingerprint TEXT PRIMARY KEY,
			paper_id TEXT NOT NULL,
			figure_number INTEGER NOT NULL,
			image_path TEXT,
			decision TEXT NOT NULL,
			tags TEXT,
			summary TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_figures_paper_id ON figures(paper_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Upsert commits one entry. If the fingerprint already exists the call is a
// no-op and the first recorded verdict wins; the returned bool reports
// whether the entry was actually inserted. Safe under concurrent calls from
// different workers: uniqueness is enforced by the primary key, not by the
// callers.
func (s *Store) Upsert(ctx context.Context, e types.IndexEntry) (bool, error) {
	tagsJSON, _ := json.Marshal(e.Tags)
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO figures (fingerprint, paper_id, figure_number, image_path, decision, tags, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		e.Fingerprint, e.PaperID, e.FigureNumber, e.ImagePath,
		string(e.Decision), string(tagsJSON), e.Summary,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("upserting %s: %w", e.Fingerprint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upserting %s: %w", e.Fingerprint, err)
	}
	return n > 0, nil
}

// Contains reports whether a fingerprint already has a recorded verdict.
func (s *Store) Contains(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM figures WHERE fingerprint = ?`, fingerprint,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", fingerprint, err)
	}
	return true, nil
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]types.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, paper_id, figure_number, image_path, decision, tags, summary, created_at
		 FROM figures ORDER BY created_at DESC, fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []types.IndexEntry
	for rows.Next() {
		var e types.IndexEntry
		var tagsJSON, createdAt string
		var decision string
		if err := rows.Scan(&e.Fingerprint, &e.PaperID, &e.FigureNumber,
			&e.ImagePath, &decision, &tagsJSON, &e.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Decision = types.Decision(decision)
		json.Unmarshal([]byte(tagsJSON), &e.Tags)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertPaper records or refreshes a paper's metadata, preserving an
// existing status.
func (s *Store) UpsertPaper(ctx context.Context, p types.Paper) error {
	catsJSON, _ := json.Marshal(p.Categories)
	published := ""
	if !p.Published.IsZero() {
		published = p.Published.Format(time.RFC3339)
	}
	status := p.Status
	if status == "" {
		status = types.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (id, title, categories, source_url, pdf_path, published, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, categories=excluded.categories,
			source_url=excluded.source_url, pdf_path=excluded.pdf_path,
			published=excluded.published`,
		p.ID, p.Title, string(catsJSON), p.SourceURL, p.PDFPath, published, string(status),
	)
	if err != nil {
		return fmt.Errorf("upserting paper %s: %w", p.ID, err)
	}
	return nil
}

// SetPaperStatus advances a paper's pipeline status.
func (s *Store) SetPaperStatus(ctx context.Context, paperID string, status types.PaperStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE papers SET status = ? WHERE id = ?`, string(status), paperID)
	if err != nil {
		return fmt.Errorf("setting status of %s: %w", paperID, err)
	}
	return nil
}

// ProcessedPaperIDs returns the set of papers that have completed the
// pipeline, so discovery can skip them on resumed runs.
func (s *Store) ProcessedPaperIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM papers WHERE status = ?`, string(types.StatusDone))
	if err != nil {
		return nil, fmt.Errorf("listing processed papers: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning paper id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Stats holds dataset counts for the stats command.
type Stats struct {
	Accepted int
	Rejected int
	Papers   map[types.PaperStatus]int
}

// Stats aggregates entry and paper counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Papers: make(map[types.PaperStatus]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT decision, count(*) FROM figures GROUP BY decision`)
	if err != nil {
		return st, fmt.Errorf("counting figures: %w", err)
	}
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("scanning figure counts: %w", err)
		}
		switch types.Decision(decision) {
		case types.DecisionAccept:
			st.Accepted = n
		case types.DecisionReject:
			st.Rejected = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT status, count(*) FROM papers GROUP BY status`)
	if err != nil {
		return st, fmt.Errorf("counting papers: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var status string
		var n int
		if err := prows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("scanning paper counts: %w", err)
		}
		st.Papers[types.PaperStatus(status)] = n
	}
	return st, prows.Err()
}
