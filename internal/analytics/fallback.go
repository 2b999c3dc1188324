package analytics

import "github.com/navada/insightlab/internal/models"

// LeaderboardSize is how many employers the derived leaderboard keeps.
const LeaderboardSize = 15

// Derive replaces ep's section of ds with a value computed from ds.Jobs and
// marks the section as derived. It returns the number of rows produced.
func Derive(ds *models.Dataset, ep models.Endpoint) int {
	if ds.Sources == nil {
		ds.Sources = make(map[models.Endpoint]models.Source)
	}

	var rows int
	switch ep {
	case models.EndpointHistogram:
		ds.Histogram, _ = SalaryHistogram(ds.Jobs, HistogramWidth)
		rows = len(ds.Histogram)
	case models.EndpointTopCompanies:
		ds.Companies = TopCompanies(ds.Jobs, LeaderboardSize)
		rows = len(ds.Companies)
	case models.EndpointGeodata:
		ds.Locations = LocationCounts(ds.Jobs, 0)
		rows = len(ds.Locations)
	case models.EndpointHistory:
		ds.History = MonthlySalary(ds.Jobs)
		rows = len(ds.History)
	case models.EndpointCategories:
		ds.Categories = DistinctCategories(ds.Jobs)
		rows = len(ds.Categories)
	default:
		return 0
	}

	if rows == 0 {
		ds.Sources[ep] = models.SourceNone
	} else {
		ds.Sources[ep] = models.SourceDerived
	}
	return rows
}

// DeriveAll derives every auxiliary section from ds.Jobs.
func DeriveAll(ds *models.Dataset) {
	for _, ep := range models.AuxiliaryEndpoints {
		Derive(ds, ep)
	}
}
