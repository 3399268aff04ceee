// Fylo Core: Knowledge-Graph MCP Server
//
// An MCP server that gives AI agents a typed knowledge graph over the
// vehicle-build scraping pipeline: sources, URLs, builds, and modifications
// as entities with typed relations, plus artifact validation, quality
// scoring, and relational export.
//
// Usage:
//
//	fylo-core serve              # Start MCP server (stdio transport)
//	fylo-core stats              # Print graph statistics
//	fylo-core validate <source>  # Validate a source's pipeline artifacts
//	fylo-core export [dir]       # Export the graph to CSV + DuckDB script
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/export"
	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/fylo-labs/fylo-core-mcp/internal/score"
	fyloserver "github.com/fylo-labs/fylo-core-mcp/internal/server"
	"github.com/fylo-labs/fylo-core-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	flagDataDir      string
	flagPipelineRoot string
)

func main() {
	root := &cobra.Command{
		Use:          "fylo-core",
		Short:        "Knowledge-graph MCP server for the vehicle-build scraping pipeline",
		Version:      fyloserver.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "graph database directory (default: $FYLO_DATA_DIR or ~/.fylo)")
	root.PersistentFlags().StringVar(&flagPipelineRoot, "pipeline-root", "", "scraping pipeline root (default: $FYLO_PIPELINE_ROOT or cwd)")

	root.AddCommand(serveCmd(), statsCmd(), validateCmd(), exportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration with CLI flags taking precedence over
// the environment and fylo.toml.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagPipelineRoot != "" {
		cfg.PipelineRoot = flagPipelineRoot
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, cleanup, err := fyloserver.New(cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// Diagnostics go to stderr only; stdout belongs to the
			// MCP stdio transport.
			fmt.Fprintf(os.Stderr, "fylo-core v%s: graph at %s, pipeline at %s\n",
				fyloserver.Version, cfg.DataDir, cfg.PipelineRoot)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				cleanup()
				os.Exit(0)
			}()

			return server.ServeStdio(s)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print graph statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := graph.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

func validateCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "validate <source>",
		Short: "Validate a source's pipeline artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := graph.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			validator := validate.New(cfg.Scoring)
			scorer := score.New(validator, cfg.Scoring, store)

			if stage == validate.StageAll {
				report, err := scorer.Report(cfg.SourceDir(args[0]))
				if err != nil {
					return err
				}
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if !report.Passed {
					os.Exit(1)
				}
				return nil
			}

			report, err := validator.ValidateStage(cfg.SourceDir(args[0]), stage)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Passed {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", validate.StageAll, "pipeline stage to validate (url_discovery, html_scrape, build_extraction, mod_extraction, all)")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [dir]",
		Short: "Export the graph to CSV files with a DuckDB load script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := graph.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			dir := filepath.Join(cfg.DataDir, "export")
			if len(args) == 1 {
				dir = args[0]
			}

			result, err := export.New(store).Relational(dir)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
