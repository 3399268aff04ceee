// Package config resolves runtime configuration for Fylo Core.
//
// Two paths drive everything: the data directory (where the graph database
// and fylo.toml live) and the pipeline root (where the scraping pipeline
// writes its per-source artifact directories). Both come from the
// environment with home-relative defaults; the scoring table is loaded from
// an optional fylo.toml in the data directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables recognized at startup.
const (
	EnvDataDir      = "FYLO_DATA_DIR"
	EnvPipelineRoot = "FYLO_PIPELINE_ROOT"
)

// ConfigFileName is the optional TOML file read from the data directory.
const ConfigFileName = "fylo.toml"

// Stage names of the scraping pipeline, in execution order.
const (
	StageURLDiscovery    = "url_discovery"
	StageHTMLScrape      = "html_scrape"
	StageBuildExtraction = "build_extraction"
	StageModExtraction   = "mod_extraction"
)

// StageOrder is the canonical pipeline stage sequence.
var StageOrder = []string{
	StageURLDiscovery,
	StageHTMLScrape,
	StageBuildExtraction,
	StageModExtraction,
}

// Scoring holds the quality-scoring table: per-stage weights and the
// minimum artifact counts the validation batteries check against. Weights
// increase down the pipeline since later stages depend on earlier ones.
type Scoring struct {
	Weights     map[string]float64 `toml:"weights"`
	MinURLs     int                `toml:"min_urls"`
	MinHTML     int                `toml:"min_html"`
	MinBuilds   int                `toml:"min_builds"`
	MinMods     int                `toml:"min_mods"`
	PassOverall float64            `toml:"pass_overall"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDir      string  `toml:"data_dir"`
	PipelineRoot string  `toml:"pipeline_root"`
	Scoring      Scoring `toml:"scoring"`
}

// Default returns the built-in configuration: ~/.fylo for data, the current
// working directory as the pipeline root, and the default scoring table.
func Default() Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return Config{
		DataDir:      filepath.Join(home, ".fylo"),
		PipelineRoot: cwd,
		Scoring: Scoring{
			Weights: map[string]float64{
				StageURLDiscovery:    1.0,
				StageHTMLScrape:      1.5,
				StageBuildExtraction: 2.0,
				StageModExtraction:   2.5,
			},
			MinURLs:     50,
			MinHTML:     1,
			MinBuilds:   1,
			MinMods:     1,
			PassOverall: 80,
		},
	}
}

// Load resolves the configuration: defaults, then environment overrides,
// then the optional fylo.toml in the data directory. A missing config file
// is not an error; a file that exists but fails to parse is.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPipelineRoot); v != "" {
		cfg.PipelineRoot = v
	}

	path := filepath.Join(cfg.DataDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg Config
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	merge(&cfg, fileCfg)

	// Environment wins over the file for paths — the file lives inside the
	// data dir, so letting it move the data dir would be circular.
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPipelineRoot); v != "" {
		cfg.PipelineRoot = v
	}

	return cfg, nil
}

// SourceDir returns the artifact directory for a named source under the
// pipeline root.
func (c Config) SourceDir(source string) string {
	return filepath.Join(c.PipelineRoot, "sources", source)
}

// Weight returns the scoring weight for a stage, defaulting to 1.0 for
// stages absent from the table.
func (s Scoring) Weight(stage string) float64 {
	if w, ok := s.Weights[stage]; ok && w > 0 {
		return w
	}
	return 1.0
}

func merge(dst *Config, src Config) {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.PipelineRoot != "" {
		dst.PipelineRoot = src.PipelineRoot
	}
	for stage, w := range src.Scoring.Weights {
		if w > 0 {
			dst.Scoring.Weights[stage] = w
		}
	}
	if src.Scoring.MinURLs > 0 {
		dst.Scoring.MinURLs = src.Scoring.MinURLs
	}
	if src.Scoring.MinHTML > 0 {
		dst.Scoring.MinHTML = src.Scoring.MinHTML
	}
	if src.Scoring.MinBuilds > 0 {
		dst.Scoring.MinBuilds = src.Scoring.MinBuilds
	}
	if src.Scoring.MinMods > 0 {
		dst.Scoring.MinMods = src.Scoring.MinMods
	}
	if src.Scoring.PassOverall > 0 {
		dst.Scoring.PassOverall = src.Scoring.PassOverall
	}
}
