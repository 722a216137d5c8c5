// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/figure-engine/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultDelay     = 1 * time.Second
	defaultUserAgent = "figure-engine/0.1"
)

// pipelineConfig assembles the full pipeline configuration. Precedence is
// flags, then the viper config file / FIGURE_ENGINE_* environment, then
// built-in defaults. The classification key additionally falls back to
// .secrets/openrouter-api-key and the OPENROUTER_API_KEY environment
// variable (loaded from .env when present).
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	viper.SetDefault("discovery.query", "")
	viper.SetDefault("discovery.max_results", 5)
	viper.SetDefault("fetch.download_delay", defaultDelay)
	viper.SetDefault("fetch.papers_dir", "papers")
	viper.SetDefault("extraction.cluster_threshold", 2)
	viper.SetDefault("extraction.max_caption_gap", 240.0)
	viper.SetDefault("extraction.render_dpi", 150.0)
	viper.SetDefault("extraction.min_region_dim", 50.0)
	viper.SetDefault("classify.model", "")
	viper.SetDefault("classify.max_retries", 3)
	viper.SetDefault("classify.workers", 4)
	viper.SetDefault("classify.timeout", defaultTimeout)
	viper.SetDefault("index.data_dir", "data")

	cfg := types.PipelineConfig{
		Discovery: types.DiscoveryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   defaultTimeout,
				UserAgent: defaultUserAgent,
			},
			Query:      viper.GetString("discovery.query"),
			MaxResults: viper.GetInt("discovery.max_results"),
		},
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   defaultTimeout,
				UserAgent: defaultUserAgent,
			},
			DownloadDelay: viper.GetDuration("fetch.download_delay"),
			PapersDir:     viper.GetString("fetch.papers_dir"),
		},
		Extraction: types.ExtractionConfig{
			ClusterThreshold: viper.GetInt("extraction.cluster_threshold"),
			MaxCaptionGap:    viper.GetFloat64("extraction.max_caption_gap"),
			RenderDPI:        viper.GetFloat64("extraction.render_dpi"),
			MinRegionDim:     viper.GetFloat64("extraction.min_region_dim"),
		},
		Classify: types.ClassifyConfig{
			AIConfig: types.AIConfig{
				Model:      viper.GetString("classify.model"),
				APIKey:     viper.GetString("classify.api_key"),
				MaxRetries: viper.GetInt("classify.max_retries"),
			},
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("classify.timeout"),
				UserAgent: defaultUserAgent,
			},
			Workers: viper.GetInt("classify.workers"),
		},
		Index: types.IndexConfig{
			DataDir: viper.GetString("index.data_dir"),
		},
	}

	applyFlagOverrides(cmd, &cfg)

	cfg.Classify.APIKey = secretDefault("openrouter-api-key", cfg.Classify.APIKey)
	if cfg.Classify.APIKey == "" {
		cfg.Classify.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return cfg
}

// applyFlagOverrides copies set flags over the config-file values. Only
// flags the subcommand actually declares are consulted.
func applyFlagOverrides(cmd *cobra.Command, cfg *types.PipelineConfig) {
	flags := cmd.Flags()
	if flags.Changed("query") {
		cfg.Discovery.Query, _ = flags.GetString("query")
	}
	if flags.Changed("max-results") {
		cfg.Discovery.MaxResults, _ = flags.GetInt("max-results")
	}
	if flags.Changed("delay") {
		cfg.Fetch.DownloadDelay, _ = flags.GetDuration("delay")
	}
	if flags.Changed("papers-dir") {
		cfg.Fetch.PapersDir, _ = flags.GetString("papers-dir")
	}
	if flags.Changed("cluster-threshold") {
		cfg.Extraction.ClusterThreshold, _ = flags.GetInt("cluster-threshold")
	}
	if flags.Changed("model") {
		cfg.Classify.Model, _ = flags.GetString("model")
	}
	if flags.Changed("api-key") {
		cfg.Classify.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("workers") {
		cfg.Classify.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("data-dir") {
		cfg.Index.DataDir, _ = flags.GetString("data-dir")
	}
}
