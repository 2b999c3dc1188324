package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/navada/insightlab/internal/charts"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/dedupe"
	"github.com/navada/insightlab/internal/elasticsearch"
	"github.com/navada/insightlab/internal/events"
	"github.com/navada/insightlab/internal/logger"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/pipeline"
	"github.com/navada/insightlab/internal/sentiment"
	"github.com/navada/insightlab/internal/snapshot"
)

type runHandler struct {
	log            *slog.Logger
	store          pipeline.Store
	categoriesPath string
	render         func(ds *models.Dataset) ([]models.ChartArtifact, error)
	indexer        pipeline.Indexer
	seen           *dedupe.Cache
}

func main() {
	_ = godotenv.Load()
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	lex, err := sentiment.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		log.Error("load lexicon", slog.Any("err", err))
		os.Exit(1)
	}
	renderer := charts.NewRenderer(cfg.ChartsDir, log)
	estimator := sentiment.New(lex)

	h := &runHandler{
		log:            log,
		store:          snapshot.New(cfg.SnapshotPath),
		categoriesPath: cfg.CategoriesPath,
		render: func(ds *models.Dataset) ([]models.ChartArtifact, error) {
			return pipeline.Render(renderer, estimator, ds)
		},
		seen: dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL),
	}

	if cfg.ElasticsearchAddr != "" {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		h.indexer = esClient
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqTopic := events.DLQTopic(cfg.KafkaTopic)
	dlqWriter := &kafka.Writer{
		Addr:        kafka.TCP(cfg.KafkaBrokers...),
		Topic:       dlqTopic,
		MaxAttempts: 3,
	}
	defer dlqWriter.Close()
	dlqRetry := events.Backoff{Attempts: 5, Base: time.Second, Log: log}

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.Bool("indexing", h.indexer != nil),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := h.processMessage(ctx, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			attempt, dlqErr := dlqRetry.Write(ctx, dlqWriter, events.DeadLetter(msg, err, time.Now()))
			if dlqErr != nil {
				if ctx.Err() != nil {
					log.Info("context canceled during DLQ retry")
					return
				}
				log.Error("DLQ write exhausted retries, message will be reprocessed on restart",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt),
			)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage re-renders charts from the snapshot for each new successful
// or stale run and mirrors the snapshot into the search index.
func (h *runHandler) processMessage(ctx context.Context, msg kafka.Message) error {
	run, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}

	if h.seen.IsSeen(run.ID) {
		h.log.Debug("duplicate fetch run", slog.String("run_id", run.ID))
		return nil
	}

	if run.Status == models.RunFailed {
		h.seen.MarkSeen(run.ID)
		h.log.Info("skipping failed fetch run",
			slog.String("run_id", run.ID),
			slog.Int("failures", run.Failures()),
		)
		return nil
	}

	ds, err := pipeline.Snapshot(h.store, h.categoriesPath)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}
	ds.Stale = run.Status == models.RunStale

	var artifacts []models.ChartArtifact
	if run.RenderedInline {
		h.log.Debug("charts rendered by producer", slog.String("run_id", run.ID))
	} else {
		artifacts, err = h.render(ds)
		if err != nil {
			return fmt.Errorf("run %s: render charts: %w", run.ID, err)
		}
	}

	indexed := 0
	if h.indexer != nil && run.Persisted {
		indexed, err = h.indexer.IndexJobs(ctx, ds.Jobs)
		if err != nil {
			return fmt.Errorf("run %s: index jobs: %w", run.ID, err)
		}
	}

	h.seen.MarkSeen(run.ID)
	h.log.Info("fetch run processed",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Int("jobs", len(ds.Jobs)),
		slog.Int("charts", len(artifacts)),
		slog.Int("indexed", indexed),
	)
	return nil
}
