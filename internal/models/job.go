package models

import "time"

// Work arrangements recognised by the classifier.
const (
	WorkRemote = "Remote"
	WorkHybrid = "Hybrid"
	WorkOnsite = "On-site"
)

// JobRecord is one normalized job listing as persisted in the snapshot.
type JobRecord struct {
	ID              string    `json:"job_id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Category        string    `json:"category"`
	ExperienceLevel string    `json:"experience_level"`
	WorkType        string    `json:"work_type"`
	SalaryMin       *float64  `json:"salary_min,omitempty"`
	SalaryMax       *float64  `json:"salary_max,omitempty"`
	Skills          []string  `json:"required_skills"`
	Description     string    `json:"description"`
	PostedDate      time.Time `json:"posted_date"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Salary returns the midpoint of the salary range, or the single known bound.
// ok is false when the listing carries no salary at all.
func (j JobRecord) Salary() (value float64, ok bool) {
	switch {
	case j.SalaryMin != nil && j.SalaryMax != nil:
		return (*j.SalaryMin + *j.SalaryMax) / 2, true
	case j.SalaryMin != nil:
		return *j.SalaryMin, true
	case j.SalaryMax != nil:
		return *j.SalaryMax, true
	default:
		return 0, false
	}
}

// Float is a small helper for building optional salary bounds.
func Float(v float64) *float64 {
	return &v
}
