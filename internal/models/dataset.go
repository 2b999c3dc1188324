package models

import "time"

// Source tells where a dataset section came from.
type Source string

const (
	SourceAPI      Source = "api"
	SourceDerived  Source = "derived"
	SourceSnapshot Source = "snapshot"
	SourceNone     Source = "none"
)

// SalaryBucket is one bar of a salary histogram. Upper is exclusive except for the last bucket.
// An Open bucket collects every salary from Lower up to and including Upper.
type SalaryBucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
	Open  bool    `json:"open,omitempty"`
}

// CompanyCount is a leaderboard row.
type CompanyCount struct {
	Company   string   `json:"company"`
	Count     int      `json:"count"`
	AvgSalary *float64 `json:"average_salary,omitempty"`
}

// LocationCount aggregates listings per location.
type LocationCount struct {
	Location  string   `json:"location"`
	Count     int      `json:"count"`
	AvgSalary *float64 `json:"average_salary,omitempty"`
}

// HistoryPoint is the average advertised salary for one month.
type HistoryPoint struct {
	Month     time.Time `json:"month"`
	AvgSalary float64   `json:"average_salary"`
}

// Category is a job category as exposed by the jobs API.
type Category struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Dataset is the merged result handed to the renderer.
type Dataset struct {
	Jobs       []JobRecord         `json:"jobs"`
	Histogram  []SalaryBucket      `json:"histogram"`
	Companies  []CompanyCount      `json:"companies"`
	Locations  []LocationCount     `json:"locations"`
	History    []HistoryPoint      `json:"history"`
	Categories []Category          `json:"categories"`
	Sources    map[Endpoint]Source `json:"sources"`
	Stale      bool                `json:"stale"`
}

// ChartArtifact describes a rendered image.
type ChartArtifact struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	Source      Source    `json:"source"`
	Rows        int       `json:"rows"`
	Placeholder bool      `json:"placeholder"`
	Note        string    `json:"note,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CompanySentimentScore aggregates description sentiment for one employer.
type CompanySentimentScore struct {
	Company       string   `json:"company"`
	Score         float64  `json:"score"`
	Count         int      `json:"count"`
	AvgSalary     *float64 `json:"avg_salary,omitempty"`
	AvgPositive   float64  `json:"avg_positive"`
	AvgNegative   float64  `json:"avg_negative"`
	AvgEngagement float64  `json:"avg_engagement"`
}
