package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/navada/insightlab/internal/adzuna"
	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/processing"
	"github.com/navada/insightlab/internal/snapshot"
)

// Source is the jobs API as seen by the orchestrator.
type Source interface {
	Search(ctx context.Context, q adzuna.SearchQuery) ([]adzuna.Result, error)
	Histogram(ctx context.Context, q adzuna.AuxQuery) ([]models.SalaryBucket, error)
	TopCompanies(ctx context.Context, q adzuna.AuxQuery) ([]models.CompanyCount, error)
	Geodata(ctx context.Context, q adzuna.AuxQuery) ([]models.LocationCount, error)
	History(ctx context.Context, q adzuna.AuxQuery) ([]models.HistoryPoint, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

// Store persists the job snapshot.
type Store interface {
	Load() ([]models.JobRecord, error)
	Save(records []models.JobRecord) error
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, run models.FetchRun) error
}

// Indexer mirrors persisted jobs into a search index.
type Indexer interface {
	IndexJobs(ctx context.Context, jobs []models.JobRecord) (int, error)
}

// Options wires an Orchestrator. A nil Source means the API credentials are
// missing; Run then fails before any network call.
type Options struct {
	Source         Source
	Store          Store
	CategoriesPath string
	Query          adzuna.SearchQuery
	Aux            adzuna.AuxQuery
	AuxEndpoints   []models.Endpoint
	AuxConcurrency int
	Publisher      Publisher
	Indexer        Indexer
	RenderInline   bool
	Log            *slog.Logger
	Now            func() time.Time
}

// Orchestrator runs one fetch pass: search, auxiliary endpoints with local
// fallbacks, snapshot persistence and the fetch log entry.
type Orchestrator struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if opts.AuxConcurrency <= 0 {
		opts.AuxConcurrency = 1
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{opts: opts, log: log, now: now}, nil
}

// Run executes one fetch pass. It always appends exactly one "fetch run" line
// to the log. The snapshot is only replaced after a successful search.
func (o *Orchestrator) Run(ctx context.Context) (*models.Dataset, models.FetchRun, error) {
	run := models.FetchRun{ID: uuid.NewString(), StartedAt: o.now().UTC()}
	log := o.log.With(slog.String("run_id", run.ID))
	log.Info("fetch run started",
		slog.Int("terms", len(o.opts.Query.Terms)),
		slog.Int("aux_endpoints", len(o.opts.AuxEndpoints)),
		slog.Int("aux_concurrency", o.opts.AuxConcurrency),
	)

	ds, err := o.run(ctx, log, &run)
	if err != nil {
		run.Status = models.RunFailed
	}
	run.RenderedInline = o.opts.RenderInline && err == nil

	run.FinishedAt = o.now().UTC()
	if run.FinishedAt.Before(run.StartedAt) {
		run.FinishedAt = run.StartedAt
	}
	o.finish(ctx, log, run, ds, err)
	return ds, run, err
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, run *models.FetchRun) (*models.Dataset, error) {
	if o.opts.Source == nil {
		log.Error("fetch aborted", slog.Any("err", config.ErrMissingCredentials))
		return nil, config.ErrMissingCredentials
	}

	fetchedAt := o.now().UTC()
	start := time.Now()
	results, err := o.opts.Source.Search(ctx, o.opts.Query)
	latency := time.Since(start)

	var jobs []models.JobRecord
	if err == nil {
		jobs = processing.NormalizeAll(results, fetchedAt)
		if len(jobs) == 0 {
			err = &adzuna.Error{Endpoint: models.EndpointSearch, Kind: adzuna.KindEmpty}
		}
	}

	outcome := models.EndpointOutcome{Endpoint: models.EndpointSearch, Records: len(jobs), Latency: latency}
	if err != nil {
		outcome.Error = err.Error()
		run.Outcomes = append(run.Outcomes, outcome)
		logFailure(ctx, log, models.EndpointSearch, latency, err)

		if adzuna.IsFatal(err) {
			return nil, fmt.Errorf("search: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("search: %w", ctxErr)
		}
		return o.stale(log, run)
	}

	outcome.OK = true
	run.Outcomes = append(run.Outcomes, outcome)
	log.Info("endpoint ok",
		slog.String("endpoint", string(models.EndpointSearch)),
		slog.Int("records", len(jobs)),
		slog.Int("raw", len(results)),
		slog.Duration("latency", latency),
	)

	ds := &models.Dataset{
		Jobs:    jobs,
		Sources: map[models.Endpoint]models.Source{models.EndpointSearch: models.SourceAPI},
	}
	o.auxiliary(ctx, log, ds, run)

	if err := o.opts.Store.Save(jobs); err != nil {
		return ds, fmt.Errorf("save snapshot: %w", err)
	}
	run.Persisted = true
	run.TotalRecords = len(jobs)
	log.Info("snapshot saved", slog.Int("records", len(jobs)))

	if o.opts.CategoriesPath != "" && len(ds.Categories) > 0 {
		if err := snapshot.SaveCategories(o.opts.CategoriesPath, ds.Categories); err != nil {
			log.Warn("save categories failed", slog.Any("err", err))
		}
	}

	run.Status = models.RunSuccess
	return ds, nil
}

// stale serves the previous snapshot after a failed or empty search. The
// snapshot itself is left untouched.
func (o *Orchestrator) stale(log *slog.Logger, run *models.FetchRun) (*models.Dataset, error) {
	log.Warn("search unavailable, serving last snapshot")

	ds, err := LoadDataset(o.opts.Store, o.opts.CategoriesPath)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		log.Warn("no snapshot available, continuing with an empty dataset")
	case err != nil:
		return nil, err
	}

	for _, ep := range models.AuxiliaryEndpoints {
		if ds.Sources[ep] == models.SourceSnapshot {
			continue
		}
		log.Info("fallback derived",
			slog.String("endpoint", string(ep)),
			slog.String("reason", "stale"),
			slog.Int("records", analytics.Derive(ds, ep)),
		)
	}

	run.TotalRecords = len(ds.Jobs)
	run.Status = models.RunStale
	return ds, nil
}

type auxSlot struct {
	apply   func(ds *models.Dataset) int
	err     error
	latency time.Duration
}

// auxiliary calls the configured endpoints, each into its own slot, then
// merges them in configured order. Failed or unconfigured endpoints are
// derived from the fetched jobs.
func (o *Orchestrator) auxiliary(ctx context.Context, log *slog.Logger, ds *models.Dataset, run *models.FetchRun) {
	slots := make([]auxSlot, len(o.opts.AuxEndpoints))

	g := new(errgroup.Group)
	g.SetLimit(o.opts.AuxConcurrency)
	for i, ep := range o.opts.AuxEndpoints {
		g.Go(func() error {
			start := time.Now()
			apply, err := o.callAux(ctx, ep)
			slots[i] = auxSlot{apply: apply, err: err, latency: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	configured := make(map[models.Endpoint]bool, len(o.opts.AuxEndpoints))
	for i, ep := range o.opts.AuxEndpoints {
		configured[ep] = true
		slot := slots[i]
		outcome := models.EndpointOutcome{Endpoint: ep, Latency: slot.latency}

		if slot.err == nil {
			outcome.OK = true
			outcome.Records = slot.apply(ds)
			ds.Sources[ep] = models.SourceAPI
			run.Outcomes = append(run.Outcomes, outcome)
			log.Info("endpoint ok",
				slog.String("endpoint", string(ep)),
				slog.Int("records", outcome.Records),
				slog.Duration("latency", slot.latency),
			)
			continue
		}

		logFailure(ctx, log, ep, slot.latency, slot.err)
		outcome.Error = slot.err.Error()
		outcome.Fallback = true
		outcome.Records = analytics.Derive(ds, ep)
		run.Outcomes = append(run.Outcomes, outcome)
		log.Info("fallback derived",
			slog.String("endpoint", string(ep)),
			slog.String("reason", string(adzuna.KindOf(slot.err))),
			slog.Int("records", outcome.Records),
		)
	}

	for _, ep := range models.AuxiliaryEndpoints {
		if configured[ep] {
			continue
		}
		log.Debug("fallback derived",
			slog.String("endpoint", string(ep)),
			slog.String("reason", "disabled"),
			slog.Int("records", analytics.Derive(ds, ep)),
		)
	}
}

func (o *Orchestrator) callAux(ctx context.Context, ep models.Endpoint) (func(*models.Dataset) int, error) {
	src, q := o.opts.Source, o.opts.Aux
	switch ep {
	case models.EndpointHistogram:
		v, err := src.Histogram(ctx, q)
		return func(ds *models.Dataset) int { ds.Histogram = v; return len(v) }, err
	case models.EndpointTopCompanies:
		v, err := src.TopCompanies(ctx, q)
		return func(ds *models.Dataset) int { ds.Companies = v; return len(v) }, err
	case models.EndpointGeodata:
		v, err := src.Geodata(ctx, q)
		return func(ds *models.Dataset) int { ds.Locations = v; return len(v) }, err
	case models.EndpointHistory:
		v, err := src.History(ctx, q)
		return func(ds *models.Dataset) int { ds.History = v; return len(v) }, err
	case models.EndpointCategories:
		v, err := src.Categories(ctx)
		return func(ds *models.Dataset) int { ds.Categories = v; return len(v) }, err
	default:
		return nil, fmt.Errorf("unknown endpoint %q", ep)
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, run models.FetchRun, ds *models.Dataset, runErr error) {
	attrs := []any{
		slog.String("status", string(run.Status)),
		slog.Int("records", run.TotalRecords),
		slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
		slog.Int("failures", run.Failures()),
		slog.Bool("persisted", run.Persisted),
	}
	if runErr != nil {
		attrs = append(attrs, slog.Any("err", runErr))
		log.Error("fetch run", attrs...)
	} else {
		log.Info("fetch run", attrs...)
	}

	if o.opts.Indexer != nil && run.Persisted && ds != nil {
		if n, err := o.opts.Indexer.IndexJobs(ctx, ds.Jobs); err != nil {
			log.Warn("index jobs failed", slog.Int("indexed", n), slog.Any("err", err))
		} else {
			log.Debug("jobs indexed", slog.Int("indexed", n))
		}
	}
	if o.opts.Publisher != nil {
		if err := o.opts.Publisher.Publish(ctx, run); err != nil {
			log.Warn("publish fetch run failed", slog.Any("err", err))
		}
	}
}

// logFailure reports a failed call. Credential failures are logged as errors
// even when a fallback covers the endpoint.
func logFailure(ctx context.Context, log *slog.Logger, ep models.Endpoint, latency time.Duration, err error) {
	level := slog.LevelWarn
	if adzuna.IsFatal(err) {
		level = slog.LevelError
	}
	log.Log(ctx, level, "endpoint failed",
		slog.String("endpoint", string(ep)),
		slog.String("kind", string(adzuna.KindOf(err))),
		slog.Duration("latency", latency),
		slog.Any("err", err),
	)
}
