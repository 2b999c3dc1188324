package charts

import "github.com/navada/insightlab/internal/models"

// Chart sets.
const (
	SetStandard  = "standard"
	SetEnhanced  = "enhanced"
	SetSentiment = "sentiment"
)

// Entry is one chart of the catalogue.
type Entry struct {
	ID    string
	File  string
	Title string
	Set   string

	// endpoint is set for charts drawn from an auxiliary endpoint section.
	endpoint models.Endpoint
	build    func(Input) (result, error)
}

type result struct {
	fig  figure
	rows int
	note string
}

func (e Entry) source(ds *models.Dataset) models.Source {
	if e.endpoint != "" {
		if src, ok := ds.Sources[e.endpoint]; ok {
			return src
		}
		return models.SourceNone
	}
	switch {
	case len(ds.Jobs) == 0:
		return models.SourceNone
	case ds.Stale:
		return models.SourceSnapshot
	default:
		return models.SourceAPI
	}
}

// Catalogue lists every chart in render order. File names are stable; the
// dashboard links to them directly.
var Catalogue = []Entry{
	{ID: "companies_hiring", File: "1_companies_hiring.png", Title: "Top Companies Hiring for AI Roles", Set: SetStandard, build: companiesHiring},
	{ID: "location_distribution", File: "2_location_distribution.png", Title: "AI Jobs by Location", Set: SetStandard, build: locationDistribution},
	{ID: "salary_by_experience", File: "3_salary_by_experience.png", Title: "Salary Distribution by Experience Level", Set: SetStandard, build: salaryByExperience},
	{ID: "required_skills", File: "5_required_skills.png", Title: "Most In-Demand Skills", Set: SetStandard, build: requiredSkills},
	{ID: "work_type", File: "6_work_type.png", Title: "Work Arrangements", Set: SetStandard, build: workType},
	{ID: "salary_by_location", File: "7_salary_by_location.png", Title: "Salary Ranges by Location", Set: SetStandard, build: salaryByLocation},
	{ID: "posting_timeline", File: "8_posting_timeline.png", Title: "Job Posting Timeline", Set: SetStandard, build: postingTimeline},
	{ID: "job_categories", File: "10_job_categories.png", Title: "Job Categories", Set: SetStandard, build: jobCategories},

	{ID: "salary_histogram", File: "enhanced_1_salary_histogram.png", Title: "UK AI Jobs Salary Distribution", Set: SetEnhanced, endpoint: models.EndpointHistogram, build: salaryHistogram},
	{ID: "top_companies_leaderboard", File: "enhanced_2_top_companies_leaderboard.png", Title: "Top Companies Leaderboard", Set: SetEnhanced, endpoint: models.EndpointTopCompanies, build: companiesLeaderboard},
	{ID: "geographic_distribution", File: "enhanced_3_geographic_distribution.png", Title: "Geographic Distribution of AI Jobs", Set: SetEnhanced, endpoint: models.EndpointGeodata, build: geographicDistribution},
	{ID: "historical_trends", File: "enhanced_4_historical_trends.png", Title: "Historical Salary Trends", Set: SetEnhanced, endpoint: models.EndpointHistory, build: historicalTrends},

	{ID: "sentiment_company_ranking", File: "sentiment_1_company_ranking.png", Title: "Company Sentiment Ranking", Set: SetSentiment, build: sentimentRanking},
	{ID: "sentiment_salary_correlation", File: "sentiment_2_salary_correlation.png", Title: "Company Sentiment vs Average Salary", Set: SetSentiment, build: sentimentSalary},
	{ID: "sentiment_engagement", File: "sentiment_3_engagement_scores.png", Title: "Company Engagement Scores", Set: SetSentiment, build: sentimentEngagement},
	{ID: "sentiment_distribution", File: "sentiment_4_distributions.png", Title: "Sentiment Analysis Distribution", Set: SetSentiment, build: sentimentDistribution},
}

// Lookup returns the catalogue entry for id.
func Lookup(id string) (Entry, bool) {
	for _, e := range Catalogue {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
