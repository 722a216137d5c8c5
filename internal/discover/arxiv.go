// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover queries the arXiv API for new papers to process. It is a
// thin collaborator of the pipeline: its only job is to return an ordered
// sequence of Paper records, skipping the ones a previous run completed.
package discover

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/figure-engine/internal/httputil"
	"github.com/pdiddy/figure-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// DefaultQuery selects the top computer-science categories.
const DefaultQuery = "cat:cs.CV OR cat:cs.CL OR cat:cs.LG OR cat:cs.AI"

// overfetchFactor controls how many extra results are requested so that
// already-processed papers can be skipped without a second round trip.
const overfetchFactor = 10

// Discover queries arXiv for the most recently submitted papers matching
// query and returns up to cfg.MaxResults new ones, newest first. Papers for
// which skip returns true are passed over.
func Discover(ctx context.Context, client *http.Client, query string, cfg types.DiscoveryConfig, skip func(id string) bool) ([]types.Paper, error) {
	if strings.TrimSpace(query) == "" {
		query = cfg.Query
	}
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	fetch := maxResults * overfetchFactor
	if fetch < 50 {
		fetch = 50
	}

	apiURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, url.QueryEscape(query), fetch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var papers []types.Paper
	for _, entry := range feed.Entries {
		id := extractArxivID(entry.ID)
		if id == "" {
			continue
		}
		if skip != nil && skip(id) {
			continue
		}

		p := types.Paper{
			ID:        id,
			Title:     strings.Join(strings.Fields(entry.Title), " "),
			SourceURL: entry.pdfURL(id),
			Status:    types.StatusPending,
		}
		for _, c := range entry.Categories {
			p.Categories = append(p.Categories, c.Term)
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			p.Published = t
		}

		papers = append(papers, p)
		if len(papers) >= maxResults {
			break
		}
	}
	return papers, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Published  string          `xml:"published"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// pdfURL returns the entry's PDF link, falling back to the canonical arXiv
// PDF URL when the feed carries none.
func (e arxivEntry) pdfURL(id string) string {
	for _, l := range e.Links {
		if l.Title == "pdf" && l.Href != "" {
			return l.Href
		}
	}
	return "https://arxiv.org/pdf/" + id
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
