package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/navada/insightlab/internal/adzuna"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/elasticsearch"
	"github.com/navada/insightlab/internal/events"
	"github.com/navada/insightlab/internal/logger"
	"github.com/navada/insightlab/internal/pipeline"
	"github.com/navada/insightlab/internal/snapshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch listings, refresh the snapshot and render charts",
	RunE:  runFetch,
}

var runNoRender bool

func init() {
	runCmd.Flags().BoolVar(&runNoRender, "no-render", false, "Skip chart rendering even when RENDER_INLINE is set")
	rootCmd.AddCommand(runCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	log := logger.New("fetcher")
	cfg, err := config.LoadFetcher()
	missingCreds := errors.Is(err, config.ErrMissingCredentials)
	if err != nil && !missingCreds {
		return fmt.Errorf("load config: %w", err)
	}

	store := snapshot.New(cfg.SnapshotPath)
	unlock, err := store.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn("release snapshot lock", slog.Any("err", err))
		}
	}()

	fetchLog, err := logger.OpenFetchLog(cfg.FetchLogPath, log)
	if err != nil {
		return err
	}
	defer fetchLog.Close()

	opts := pipeline.Options{
		Store:          store,
		CategoriesPath: cfg.CategoriesPath,
		Query:          searchQuery(cfg),
		Aux:            auxQuery(cfg),
		AuxEndpoints:   cfg.AuxEndpoints,
		AuxConcurrency: cfg.AuxConcurrency,
		RenderInline:   cfg.RenderInline && !runNoRender,
		Log:            fetchLog.Logger,
	}

	if !missingCreds {
		client, err := adzuna.New(adzuna.Options{
			BaseURL:           cfg.BaseURL,
			Country:           cfg.Country,
			AppID:             cfg.AppID,
			AppKey:            cfg.AppKey,
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            log,
		})
		if err != nil {
			return err
		}
		opts.Source = client
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, closePub := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer closePub()
		opts.Publisher = pub
	}
	if cfg.ElasticsearchAddr != "" {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return err
		}
		opts.Indexer = esClient
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	ds, run, err := orch.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch run %s: %w", run.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s, %d records, %d failed endpoints\n",
		run.ID, run.Status, run.TotalRecords, run.Failures())

	if !cfg.RenderInline || runNoRender {
		return nil
	}
	est, renderer, err := chartTools(&cfg.Common, log)
	if err != nil {
		return err
	}
	artifacts, err := pipeline.Render(renderer, est, ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d charts into %s\n", len(artifacts), cfg.ChartsDir)
	return nil
}

func searchQuery(cfg *config.Fetcher) adzuna.SearchQuery {
	return adzuna.SearchQuery{
		Terms:          cfg.SearchTerms,
		Where:          cfg.Where,
		Category:       cfg.Category,
		ResultsPerPage: cfg.ResultsPerPage,
		MaxPages:       cfg.MaxPages,
		MaxResults:     cfg.MaxResults,
		MaxDaysOld:     cfg.MaxDaysOld,
	}
}

// auxQuery scopes the auxiliary endpoints to the first search term across the UK.
func auxQuery(cfg *config.Fetcher) adzuna.AuxQuery {
	q := adzuna.AuxQuery{
		Location0: "UK",
		Category:  cfg.Category,
		Months:    cfg.HistoryMonths,
	}
	if len(cfg.SearchTerms) > 0 {
		q.What = cfg.SearchTerms[0]
	}
	return q
}
