package adzuna

// Result is one listing as returned by the search endpoint.
type Result struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Created      string   `json:"created"`
	RedirectURL  string   `json:"redirect_url"`
	SalaryMin    *float64 `json:"salary_min"`
	SalaryMax    *float64 `json:"salary_max"`
	ContractTime string   `json:"contract_time"`
	Company      Company  `json:"company"`
	Location     Location `json:"location"`
	Category     Category `json:"category"`
}

type Company struct {
	DisplayName string `json:"display_name"`
}

type Location struct {
	DisplayName string   `json:"display_name"`
	Area        []string `json:"area"`
}

type Category struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// SearchQuery drives the paginated search across several terms.
type SearchQuery struct {
	Terms          []string
	Where          string
	Category       string
	ResultsPerPage int
	MaxPages       int
	MaxResults     int
	MaxDaysOld     int
}

// AuxQuery narrows the histogram, top_companies, geodata and history endpoints.
type AuxQuery struct {
	What      string
	Location0 string
	Category  string
	Months    int
}

type searchResponse struct {
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

type histogramResponse struct {
	Histogram map[string]float64 `json:"histogram"`
}

type leaderboardResponse struct {
	Leaderboard []struct {
		CanonicalName string  `json:"canonical_name"`
		DisplayName   string  `json:"display_name"`
		Count         int     `json:"count"`
		AverageSalary float64 `json:"average_salary"`
	} `json:"leaderboard"`
}

type geodataResponse struct {
	Locations []struct {
		Location      Location `json:"location"`
		Count         int      `json:"count"`
		AverageSalary float64  `json:"average_salary"`
	} `json:"locations"`
}

type historyResponse struct {
	Month map[string]float64 `json:"month"`
}

type categoriesResponse struct {
	Results []Category `json:"results"`
}
