package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/navada/insightlab/internal/adzuna"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/logger"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/pipeline"
	"github.com/navada/insightlab/internal/snapshot"
)

type stubSource struct {
	mu        sync.Mutex
	results   []adzuna.Result
	searchErr error
	auxErr    map[models.Endpoint]error
	calls     []models.Endpoint
}

func (s *stubSource) record(ep models.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ep)
	return s.auxErr[ep]
}

func (s *stubSource) Search(_ context.Context, _ adzuna.SearchQuery) ([]adzuna.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, models.EndpointSearch)
	return s.results, s.searchErr
}

func (s *stubSource) Histogram(_ context.Context, _ adzuna.AuxQuery) ([]models.SalaryBucket, error) {
	if err := s.record(models.EndpointHistogram); err != nil {
		return nil, err
	}
	return []models.SalaryBucket{{Lower: 40000, Upper: 60000, Count: 4}}, nil
}

func (s *stubSource) TopCompanies(_ context.Context, _ adzuna.AuxQuery) ([]models.CompanyCount, error) {
	if err := s.record(models.EndpointTopCompanies); err != nil {
		return nil, err
	}
	return []models.CompanyCount{{Company: "API Co", Count: 99}}, nil
}

func (s *stubSource) Geodata(_ context.Context, _ adzuna.AuxQuery) ([]models.LocationCount, error) {
	if err := s.record(models.EndpointGeodata); err != nil {
		return nil, err
	}
	return []models.LocationCount{{Location: "London", Count: 50}}, nil
}

func (s *stubSource) History(_ context.Context, _ adzuna.AuxQuery) ([]models.HistoryPoint, error) {
	if err := s.record(models.EndpointHistory); err != nil {
		return nil, err
	}
	return []models.HistoryPoint{{Month: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), AvgSalary: 70000}}, nil
}

func (s *stubSource) Categories(_ context.Context) ([]models.Category, error) {
	if err := s.record(models.EndpointCategories); err != nil {
		return nil, err
	}
	return []models.Category{{Tag: "it-jobs", Label: "IT Jobs"}}, nil
}

type stubPublisher struct {
	runs []models.FetchRun
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, run models.FetchRun) error {
	s.runs = append(s.runs, run)
	return s.err
}

type stubIndexer struct {
	jobs int
	err  error
}

func (s *stubIndexer) IndexJobs(_ context.Context, jobs []models.JobRecord) (int, error) {
	s.jobs += len(jobs)
	return len(jobs), s.err
}

func makeResults(n, companies int) []adzuna.Result {
	out := make([]adzuna.Result, n)
	for i := range out {
		salary := float64(40000 + (i%8)*10000)
		out[i] = adzuna.Result{
			ID:          fmt.Sprintf("job-%03d", i),
			Title:       fmt.Sprintf("Machine Learning Engineer %03d", i),
			Description: "Exciting role building python and pytorch models with a collaborative team.",
			Created:     time.Date(2024, 5, 1+i%20, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
			RedirectURL: fmt.Sprintf("https://example.test/jobs/%d", i),
			SalaryMin:   &salary,
			SalaryMax:   &salary,
			Company:     adzuna.Company{DisplayName: fmt.Sprintf("Company %02d", i%companies)},
			Location:    adzuna.Location{DisplayName: "London"},
		}
	}
	return out
}

type harness struct {
	store    *snapshot.Store
	catsPath string
	logBuf   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		store:    snapshot.New(filepath.Join(dir, "live_uk_ai_jobs.csv")),
		catsPath: filepath.Join(dir, "adzuna_categories.csv"),
		logBuf:   &bytes.Buffer{},
	}
}

func (h *harness) options(src pipeline.Source, aux ...models.Endpoint) pipeline.Options {
	opts := pipeline.Options{
		Store:          h.store,
		CategoriesPath: h.catsPath,
		Query:          adzuna.SearchQuery{Terms: []string{"machine learning"}},
		AuxEndpoints:   aux,
		AuxConcurrency: 1,
		Log:            slog.New(logger.NewFetchHandler(h.logBuf)),
	}
	if src != nil {
		opts.Source = src
	}
	return opts
}

func (h *harness) count(msg string) int {
	return strings.Count(h.logBuf.String(), fmt.Sprintf("msg=%q", msg))
}

func (h *harness) seed(t *testing.T) []byte {
	t.Helper()
	src := &stubSource{results: makeResults(12, 4)}
	o, err := pipeline.New(pipeline.Options{Store: h.store, Source: src, Query: adzuna.SearchQuery{Terms: []string{"ai"}}})
	require.NoError(t, err)
	_, _, err = o.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	return data
}

func TestRunLeaderboardFallback(t *testing.T) {
	h := newHarness(t)
	src := &stubSource{
		results: makeResults(185, 20),
		auxErr: map[models.Endpoint]error{
			models.EndpointTopCompanies: &adzuna.Error{Endpoint: models.EndpointTopCompanies, Kind: adzuna.KindTimeout},
		},
	}

	o, err := pipeline.New(h.options(src, models.EndpointTopCompanies))
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, models.RunSuccess, run.Status)
	require.Equal(t, 185, run.TotalRecords)
	require.True(t, run.Persisted)
	require.Equal(t, 1, run.Failures())
	require.False(t, run.FinishedAt.Before(run.StartedAt))

	require.Len(t, ds.Jobs, 185)
	require.Equal(t, models.SourceDerived, ds.Sources[models.EndpointTopCompanies])
	require.Len(t, ds.Companies, 15)
	require.Equal(t, "Company 00", ds.Companies[0].Company)
	require.Equal(t, 10, ds.Companies[0].Count)
	require.NotEmpty(t, ds.Histogram)
	require.NotEmpty(t, ds.Locations)

	require.Equal(t, 1, h.count("endpoint failed"))
	require.Equal(t, 1, h.count("endpoint ok"))
	require.Equal(t, 1, h.count("fetch run"))
	require.Contains(t, h.logBuf.String(), "kind=timeout")

	saved, err := h.store.Load()
	require.NoError(t, err)
	require.Len(t, saved, 185)
}

func TestRunFailedSearchLeavesSnapshotUntouched(t *testing.T) {
	h := newHarness(t)
	before := h.seed(t)

	src := &stubSource{searchErr: &adzuna.Error{Endpoint: models.EndpointSearch, Kind: adzuna.KindTimeout}}
	o, err := pipeline.New(h.options(src, models.AuxiliaryEndpoints...))
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunStale, run.Status)
	require.False(t, run.Persisted)
	require.Equal(t, 12, run.TotalRecords)
	require.True(t, ds.Stale)
	require.Len(t, ds.Jobs, 12)
	require.Equal(t, models.SourceSnapshot, ds.Sources[models.EndpointSearch])
	require.Equal(t, models.SourceDerived, ds.Sources[models.EndpointTopCompanies])
	require.Equal(t, []models.Endpoint{models.EndpointSearch}, src.calls)

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.Equal(t, 1, h.count("fetch run"))
	require.Equal(t, 1, h.count("endpoint failed"))
	require.Zero(t, h.count("snapshot saved"))
}

func TestRunEmptySearchIsStale(t *testing.T) {
	h := newHarness(t)
	before := h.seed(t)

	o, err := pipeline.New(h.options(&stubSource{}))
	require.NoError(t, err)

	_, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunStale, run.Status)
	require.Contains(t, run.Outcomes[0].Error, "empty")

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRunWithoutSnapshotYieldsEmptyDataset(t *testing.T) {
	h := newHarness(t)
	src := &stubSource{searchErr: &adzuna.Error{Endpoint: models.EndpointSearch, Kind: adzuna.KindNetwork}}

	o, err := pipeline.New(h.options(src))
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunStale, run.Status)
	require.Empty(t, ds.Jobs)
	for _, ep := range models.AuxiliaryEndpoints {
		require.Equal(t, models.SourceNone, ds.Sources[ep], ep)
	}
	require.NoFileExists(t, h.store.Path())
}

func TestRunMissingCredentials(t *testing.T) {
	h := newHarness(t)
	pub := &stubPublisher{}
	opts := h.options(nil)
	opts.Publisher = pub

	o, err := pipeline.New(opts)
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.ErrorIs(t, err, config.ErrMissingCredentials)
	require.Nil(t, ds)
	require.Equal(t, models.RunFailed, run.Status)
	require.NoFileExists(t, h.store.Path())
	require.Equal(t, 1, h.count("fetch run"))
	require.Len(t, pub.runs, 1)
	require.Equal(t, models.RunFailed, pub.runs[0].Status)
}

func TestRunUnauthorizedAborts(t *testing.T) {
	h := newHarness(t)
	before := h.seed(t)

	src := &stubSource{searchErr: &adzuna.Error{Endpoint: models.EndpointSearch, Kind: adzuna.KindUnauthorized, Status: 401}}
	o, err := pipeline.New(h.options(src, models.AuxiliaryEndpoints...))
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.ErrorIs(t, err, adzuna.ErrUnauthorized)
	require.True(t, adzuna.IsFatal(err))
	require.Nil(t, ds)
	require.Equal(t, models.RunFailed, run.Status)

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 1, h.count("fetch run"))
}

func TestRunMarksInlineRendering(t *testing.T) {
	h := newHarness(t)
	pub := &stubPublisher{}
	opts := h.options(&stubSource{results: makeResults(6, 2)})
	opts.Publisher = pub
	opts.RenderInline = true

	o, err := pipeline.New(opts)
	require.NoError(t, err)
	_, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.True(t, run.RenderedInline)
	require.Len(t, pub.runs, 1)
	require.True(t, pub.runs[0].RenderedInline)

	opts.Source = nil
	o, err = pipeline.New(opts)
	require.NoError(t, err)
	_, run, err = o.Run(context.Background())
	require.Error(t, err)
	require.False(t, run.RenderedInline)
}

func TestRunAuxiliaryUnauthorizedLoggedAsError(t *testing.T) {
	h := newHarness(t)
	src := &stubSource{
		results: makeResults(20, 4),
		auxErr: map[models.Endpoint]error{
			models.EndpointHistory: &adzuna.Error{Endpoint: models.EndpointHistory, Kind: adzuna.KindUnauthorized, Status: 401},
			models.EndpointGeodata: &adzuna.Error{Endpoint: models.EndpointGeodata, Kind: adzuna.KindTimeout},
		},
	}

	o, err := pipeline.New(h.options(src, models.EndpointHistory, models.EndpointGeodata))
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunSuccess, run.Status)
	require.Equal(t, models.SourceDerived, ds.Sources[models.EndpointHistory])
	require.Equal(t, 2, run.Failures())

	var errorLines, warnLines int
	for _, line := range strings.Split(h.logBuf.String(), "\n") {
		if !strings.Contains(line, `msg="endpoint failed"`) {
			continue
		}
		switch {
		case strings.Contains(line, "level=ERROR"):
			errorLines++
			require.Contains(t, line, "kind=unauthorized")
		case strings.Contains(line, "level=WARN"):
			warnLines++
			require.Contains(t, line, "kind=timeout")
		}
	}
	require.Equal(t, 1, errorLines)
	require.Equal(t, 1, warnLines)
}

func TestRunCorruptSnapshotSurfaces(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.store.Path(), []byte("foo,bar\n1,2\n"), 0o644))

	src := &stubSource{searchErr: &adzuna.Error{Endpoint: models.EndpointSearch, Kind: adzuna.KindTimeout}}
	o, err := pipeline.New(h.options(src))
	require.NoError(t, err)

	_, run, err := o.Run(context.Background())
	var ce *snapshot.CorruptError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, models.RunFailed, run.Status)
	require.Equal(t, 1, h.count("fetch run"))
}

func TestRunConcurrentAuxiliary(t *testing.T) {
	h := newHarness(t)
	src := &stubSource{results: makeResults(30, 5)}
	pub := &stubPublisher{}
	idx := &stubIndexer{}

	opts := h.options(src, models.AuxiliaryEndpoints...)
	opts.AuxConcurrency = 3
	opts.Publisher = pub
	opts.Indexer = idx

	o, err := pipeline.New(opts)
	require.NoError(t, err)

	ds, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, run.Failures())

	got := make([]models.Endpoint, 0, len(run.Outcomes))
	for _, oc := range run.Outcomes {
		got = append(got, oc.Endpoint)
	}
	require.Equal(t, append([]models.Endpoint{models.EndpointSearch}, models.AuxiliaryEndpoints...), got)

	for _, ep := range models.AuxiliaryEndpoints {
		require.Equal(t, models.SourceAPI, ds.Sources[ep], ep)
	}
	require.Equal(t, "API Co", ds.Companies[0].Company)
	require.Equal(t, 6, h.count("endpoint ok"))

	require.Equal(t, 30, idx.jobs)
	require.Len(t, pub.runs, 1)
	require.Equal(t, run.ID, pub.runs[0].ID)

	cats, err := snapshot.LoadCategories(h.catsPath)
	require.NoError(t, err)
	require.Equal(t, []models.Category{{Tag: "it-jobs", Label: "IT Jobs"}}, cats)
}

func TestRunSinkFailuresAreWarnings(t *testing.T) {
	h := newHarness(t)
	opts := h.options(&stubSource{results: makeResults(5, 2)})
	opts.Publisher = &stubPublisher{err: errors.New("broker down")}
	opts.Indexer = &stubIndexer{err: errors.New("cluster red")}

	o, err := pipeline.New(opts)
	require.NoError(t, err)

	_, run, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunSuccess, run.Status)
	require.Contains(t, h.logBuf.String(), "publish fetch run failed")
	require.Contains(t, h.logBuf.String(), "index jobs failed")
}

func TestNewRequiresStore(t *testing.T) {
	_, err := pipeline.New(pipeline.Options{})
	require.Error(t, err)
}

func TestSnapshotDerivesEverySection(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	ds, err := pipeline.Snapshot(h.store, h.catsPath)
	require.NoError(t, err)
	require.True(t, ds.Stale)
	require.Len(t, ds.Jobs, 12)
	require.NotEmpty(t, ds.Companies)
	require.Equal(t, models.SourceDerived, ds.Sources[models.EndpointTopCompanies])

	empty, err := pipeline.Snapshot(snapshot.New(filepath.Join(t.TempDir(), "none.csv")), "")
	require.NoError(t, err)
	require.Empty(t, empty.Jobs)
}
