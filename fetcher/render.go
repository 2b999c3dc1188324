package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/charts"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/logger"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/pipeline"
	"github.com/navada/insightlab/internal/sentiment"
	"github.com/navada/insightlab/internal/snapshot"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render every chart from the saved snapshot without calling the API",
	RunE:  runRender,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the assistant system prompt built from the saved snapshot",
	RunE:  runContext,
}

var renderChartsDir string

func init() {
	renderCmd.Flags().StringVarP(&renderChartsDir, "out", "o", "", "Chart output directory (overrides CHARTS_DIR)")
	rootCmd.AddCommand(renderCmd, contextCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	log := logger.New("fetcher")
	cfg, err := loadOffline()
	if err != nil {
		return err
	}
	if renderChartsDir != "" {
		cfg.ChartsDir = renderChartsDir
	}

	artifacts, err := renderSnapshot(&cfg.Common, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d charts into %s\n", len(artifacts), cfg.ChartsDir)
	return nil
}

func runContext(cmd *cobra.Command, _ []string) error {
	cfg, err := loadOffline()
	if err != nil {
		return err
	}
	ds, err := pipeline.Snapshot(snapshot.New(cfg.SnapshotPath), cfg.CategoriesPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), analytics.Summarize(ds).Prompt())
	return nil
}

// loadOffline reads the fetcher config for commands that never call the API.
func loadOffline() (*config.Fetcher, error) {
	cfg, err := config.LoadFetcher()
	if err != nil && !errors.Is(err, config.ErrMissingCredentials) {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func renderSnapshot(cfg *config.Common, log *slog.Logger) ([]models.ChartArtifact, error) {
	ds, err := pipeline.Snapshot(snapshot.New(cfg.SnapshotPath), cfg.CategoriesPath)
	if err != nil {
		return nil, err
	}
	est, renderer, err := chartTools(cfg, log)
	if err != nil {
		return nil, err
	}
	return pipeline.Render(renderer, est, ds)
}

func chartTools(cfg *config.Common, log *slog.Logger) (*sentiment.Estimator, *charts.Renderer, error) {
	lex, err := sentiment.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, nil, err
	}
	return sentiment.New(lex), charts.NewRenderer(cfg.ChartsDir, log), nil
}
