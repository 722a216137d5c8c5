package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "figure-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DiscoveryConfig holds settings for the paper discovery stage.
type DiscoveryConfig struct {
	HTTPConfig `yaml:",inline"`

	// Query is the arXiv search query used when none is given on the
	// command line (default: the top CS categories).
	Query string `json:"query" yaml:"query"`

	// MaxResults is the number of new papers to select per run (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// FetchConfig holds settings for the PDF fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// PapersDir is the base directory for papers (contains raw/, metadata/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`
}

// ExtractionConfig holds settings for region extraction, caption matching,
// and sub-figure clustering.
type ExtractionConfig struct {
	// ClusterThreshold is the maximum number of constituent sub-images a
	// candidate may have before it is rejected as a results grid (default 2).
	ClusterThreshold int `json:"cluster_threshold" yaml:"cluster_threshold"`

	// MaxCaptionGap is the largest vertical distance, in PDF points, between
	// a caption and an image block it may claim (default 240).
	MaxCaptionGap float64 `json:"max_caption_gap" yaml:"max_caption_gap"`

	// RenderDPI is the resolution used when rendering composite regions
	// to image payloads (default 150).
	RenderDPI float64 `json:"render_dpi" yaml:"render_dpi"`

	// MinRegionDim is the smallest width or height, in PDF points, a
	// composite region may have (default 50).
	MinRegionDim float64 `json:"min_region_dim" yaml:"min_region_dim"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "x-ai/grok-4.1-fast:free").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ClassifyConfig holds settings for the classification gateway.
type ClassifyConfig struct {
	AIConfig `yaml:",inline"`

	HTTPConfig `yaml:",inline"`

	// Workers is the size of the classification worker pool (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// IndexConfig holds settings for the dataset index store.
type IndexConfig struct {
	// DataDir is the base directory for pipeline output
	// (contains figures/ and index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Discovery  DiscoveryConfig  `json:"discovery" yaml:"discovery"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Classify   ClassifyConfig   `json:"classify" yaml:"classify"`
	Index      IndexConfig      `json:"index" yaml:"index"`
}

// Validate checks for fatal configuration errors that must abort the run
// before any work is dispatched.
func (c PipelineConfig) Validate() error {
	if c.Classify.Workers < 1 {
		return fmt.Errorf("classify.workers must be at least 1, got %d", c.Classify.Workers)
	}
	if c.Classify.APIKey == "" {
		return fmt.Errorf("classification API key is required: set classify.api_key or .secrets/openrouter-api-key")
	}
	if c.Extraction.ClusterThreshold < 1 {
		return fmt.Errorf("extraction.cluster_threshold must be at least 1, got %d", c.Extraction.ClusterThreshold)
	}
	return nil
}
