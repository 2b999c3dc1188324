package pipeline

import (
	"errors"
	"fmt"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/charts"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/sentiment"
	"github.com/navada/insightlab/internal/snapshot"
)

// LoadDataset rebuilds a stale dataset from the snapshot and the categories
// file. Auxiliary sections other than categories are left for the caller to
// derive. When no snapshot exists the returned dataset is empty and the error
// is snapshot.ErrNoSnapshot.
func LoadDataset(store Store, categoriesPath string) (*models.Dataset, error) {
	ds := &models.Dataset{
		Sources: map[models.Endpoint]models.Source{models.EndpointSearch: models.SourceNone},
		Stale:   true,
	}

	jobs, err := store.Load()
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		return ds, err
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	ds.Jobs = jobs
	if len(jobs) > 0 {
		ds.Sources[models.EndpointSearch] = models.SourceSnapshot
	}

	if categoriesPath != "" {
		cats, err := snapshot.LoadCategories(categoriesPath)
		if err == nil && len(cats) > 0 {
			ds.Categories = cats
			ds.Sources[models.EndpointCategories] = models.SourceSnapshot
		}
	}
	return ds, nil
}

// Snapshot loads the dataset for offline consumers and fills every section
// from local data. A missing snapshot yields an empty dataset without error.
func Snapshot(store Store, categoriesPath string) (*models.Dataset, error) {
	ds, err := LoadDataset(store, categoriesPath)
	if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil, err
	}
	for _, ep := range models.AuxiliaryEndpoints {
		if ds.Sources[ep] != models.SourceSnapshot {
			analytics.Derive(ds, ep)
		}
	}
	return ds, nil
}

// Render scores descriptions and draws the full chart set for ds.
func Render(r *charts.Renderer, est *sentiment.Estimator, ds *models.Dataset) ([]models.ChartArtifact, error) {
	if ds == nil {
		ds = &models.Dataset{}
	}
	return r.RenderAll(charts.Input{
		Dataset:   ds,
		Sentiment: est.Aggregate(ds.Jobs, sentiment.MinCompanyJobs),
	})
}
