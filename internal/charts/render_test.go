package charts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/sentiment"
)

func fixedRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRenderer(dir, nil)
	r.width, r.height = 4*72, 3*72
	r.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	return r, dir
}

func sampleDataset() *models.Dataset {
	levels := []string{"Entry", "Mid", "Senior", "Lead"}
	places := []string{"London", "Manchester", "Leeds"}
	posted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	var jobs []models.JobRecord
	for i := 0; i < 24; i++ {
		salary := 40000 + float64(i)*2500
		jobs = append(jobs, models.JobRecord{
			ID:              fmt.Sprintf("job-%d", i),
			Title:           "ML Engineer",
			Company:         fmt.Sprintf("Company %d", i%5),
			Location:        places[i%len(places)],
			Category:        "Engineering",
			ExperienceLevel: levels[i%len(levels)],
			WorkType:        models.WorkHybrid,
			SalaryMin:       models.Float(salary),
			SalaryMax:       models.Float(salary + 10000),
			Skills:          []string{"Python", "Aws"},
			Description:     "Innovative team with a collaborative culture and tight deadlines",
			PostedDate:      posted.AddDate(0, 0, i%6),
		})
	}
	jobs = append(jobs, models.JobRecord{ID: "no-salary", Company: "Company 0", Location: "London", Description: "x"})

	ds := &models.Dataset{Jobs: jobs}
	analytics.DeriveAll(ds)
	return ds
}

func TestCatalogue(t *testing.T) {
	require.Len(t, Catalogue, 16)

	ids := make(map[string]bool)
	files := make(map[string]bool)
	sets := make(map[string]int)
	for _, e := range Catalogue {
		require.False(t, ids[e.ID], e.ID)
		require.False(t, files[e.File], e.File)
		ids[e.ID], files[e.File] = true, true
		sets[e.Set]++
	}
	require.Equal(t, map[string]int{SetStandard: 8, SetEnhanced: 4, SetSentiment: 4}, sets)

	e, ok := Lookup("sentiment_distribution")
	require.True(t, ok)
	require.Equal(t, "sentiment_4_distributions.png", e.File)
}

func TestRenderAllEmptyDatasetWritesPlaceholders(t *testing.T) {
	r, dir := fixedRenderer(t)

	arts, err := r.RenderAll(Input{})
	require.NoError(t, err)
	require.Len(t, arts, len(Catalogue))

	for i, a := range arts {
		require.Equal(t, Catalogue[i].ID, a.ID)
		require.True(t, a.Placeholder, a.ID)
		require.Equal(t, models.SourceNone, a.Source)
		info, err := os.Stat(filepath.Join(dir, Catalogue[i].File))
		require.NoError(t, err)
		require.Positive(t, info.Size())
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	require.Len(t, m.Charts, 16)
}

func TestRenderAllWithData(t *testing.T) {
	r, dir := fixedRenderer(t)
	ds := sampleDataset()
	analysis := sentiment.New(sentiment.DefaultLexicon()).Aggregate(ds.Jobs, sentiment.MinCompanyJobs)

	arts, err := r.RenderAll(Input{Dataset: ds, Sentiment: analysis})
	require.NoError(t, err)

	byID := make(map[string]models.ChartArtifact)
	for _, a := range arts {
		byID[a.ID] = a
		_, err := os.Stat(filepath.Join(dir, filepath.Base(a.Path)))
		require.NoError(t, err)
	}

	for _, id := range []string{"companies_hiring", "salary_by_experience", "posting_timeline", "salary_histogram", "top_companies_leaderboard", "sentiment_company_ranking", "sentiment_distribution"} {
		require.False(t, byID[id].Placeholder, id)
		require.Positive(t, byID[id].Rows, id)
	}
	require.Equal(t, models.SourceAPI, byID["companies_hiring"].Source)
	require.Equal(t, models.SourceDerived, byID["salary_histogram"].Source)
	require.Equal(t, "excluded: 1", byID["salary_histogram"].Note)
	require.Equal(t, 5, byID["companies_hiring"].Rows)
}

func TestRenderAllStaleSource(t *testing.T) {
	r, _ := fixedRenderer(t)
	ds := sampleDataset()
	ds.Stale = true

	arts, err := r.RenderAll(Input{Dataset: ds})
	require.NoError(t, err)
	require.Equal(t, models.SourceSnapshot, arts[0].Source)

	// no sentiment analysis supplied
	last := arts[len(arts)-1]
	require.True(t, last.Placeholder)
}

func TestPoundTicks(t *testing.T) {
	ticks := poundTicks{}.Ticks(0, 100000)
	labelled := 0
	for _, tk := range ticks {
		if tk.Label != "" {
			require.Equal(t, analytics.Pounds(tk.Value), tk.Label)
			labelled++
		}
	}
	require.Positive(t, labelled)
}
