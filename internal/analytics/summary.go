package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/navada/insightlab/internal/models"
)

// Summary is the compact view of a dataset handed to the chat assistant.
type Summary struct {
	TotalJobs     int                    `json:"total_jobs"`
	LastUpdated   time.Time              `json:"last_updated"`
	RecentJobs    int                    `json:"jobs_last_7_days"`
	TopCompanies  []models.CompanyCount  `json:"top_companies"`
	TopLocations  []models.LocationCount `json:"top_locations"`
	SalaryByLevel []LevelSalary          `json:"salary_by_level"`
	Salary        SalaryStats            `json:"salary"`
	Experience    []Count                `json:"experience"`
	WorkTypes     []Count                `json:"work_types"`
	Categories    []Count                `json:"categories"`
	Skills        []Count                `json:"skills"`
	Stale         bool                   `json:"stale"`
}

// LevelSalary is the mean salary for one experience level.
type LevelSalary struct {
	Level string  `json:"level"`
	Mean  float64 `json:"mean"`
}

// Summarize builds a Summary from the dataset's jobs.
func Summarize(ds *models.Dataset) Summary {
	jobs := ds.Jobs
	s := Summary{
		TotalJobs:    len(jobs),
		TopCompanies: TopCompanies(jobs, 15),
		TopLocations: LocationCounts(jobs, 20),
		Salary:       Salaries(jobs),
		Experience:   ExperienceCounts(jobs),
		WorkTypes:    WorkTypeCounts(jobs),
		Categories:   CategoryCounts(jobs),
		Skills:       SkillCounts(jobs, 10),
		Stale:        ds.Stale,
	}

	var latestPost time.Time
	for _, j := range jobs {
		if j.FetchedAt.After(s.LastUpdated) {
			s.LastUpdated = j.FetchedAt
		}
		if j.PostedDate.After(latestPost) {
			latestPost = j.PostedDate
		}
	}
	cutoff := latestPost.AddDate(0, 0, -7)
	for _, j := range jobs {
		if !j.PostedDate.IsZero() && !j.PostedDate.Before(cutoff) {
			s.RecentJobs++
		}
	}

	for _, g := range SalaryByExperience(jobs) {
		s.SalaryByLevel = append(s.SalaryByLevel, LevelSalary{Level: g.Label, Mean: Mean(g.Values)})
	}
	return s
}

// Prompt renders the summary as the assistant's system prompt.
func (s Summary) Prompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are InsightLab AI Assistant, a senior UK AI job market analyst.\n\n")
	fmt.Fprintf(&b, "LIVE DATA: CURRENT UK AI JOB MARKET (%d active positions)\n\n", s.TotalJobs)

	b.WriteString("STATISTICS:\n")
	fmt.Fprintf(&b, "- Total Active Jobs: %d\n", s.TotalJobs)
	if !s.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "- Last Updated: %s\n", s.LastUpdated.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "- Recent Activity: %d new jobs in last 7 days\n", s.RecentJobs)
	if s.Stale {
		b.WriteString("- Note: the live API was unavailable; figures come from the last saved snapshot\n")
	}

	section(&b, "TOP HIRING COMPANIES", joinN(s.TopCompanies, 10, func(c models.CompanyCount) string {
		return fmt.Sprintf("%s (%d jobs)", c.Company, c.Count)
	}))
	section(&b, "GEOGRAPHIC DISTRIBUTION", joinN(s.TopLocations, 10, func(l models.LocationCount) string {
		return fmt.Sprintf("%s (%d)", l.Location, l.Count)
	}))

	b.WriteString("\nSALARY ANALYSIS (GBP):\n")
	if s.Salary.Count == 0 {
		b.WriteString("- No salary data available\n")
	} else {
		fmt.Fprintf(&b, "- Average by Level: %s\n", joinN(s.SalaryByLevel, 0, func(l LevelSalary) string {
			return fmt.Sprintf("%s: %s", l.Level, Pounds(l.Mean))
		}))
		fmt.Fprintf(&b, "- Overall Average: %s\n", Pounds(s.Salary.Mean))
		fmt.Fprintf(&b, "- Salary Range: %s - %s\n", Pounds(s.Salary.Min), Pounds(s.Salary.Max))
		fmt.Fprintf(&b, "- Median Salary: %s\n", Pounds(s.Salary.Median))
	}

	section(&b, "EXPERIENCE LEVELS", joinCounts(s.Experience, ""))
	section(&b, "WORK ARRANGEMENTS", joinCounts(s.WorkTypes, ""))
	section(&b, "JOB CATEGORIES", joinCounts(s.Categories, ""))
	section(&b, "IN-DEMAND SKILLS", joinCounts(s.Skills, " mentions"))

	b.WriteString("\nAnswer questions about companies, locations, salaries, skills and trends using only the figures above. ")
	b.WriteString("Say so when the data does not cover a question.")
	return b.String()
}

// Pounds formats v as whole pounds with thousands separators.
func Pounds(v float64) string {
	n := int64(v + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-£" + b.String()
	}
	return "£" + b.String()
}

func section(b *strings.Builder, title, body string) {
	if body == "" {
		body = "none"
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, body)
}

func joinCounts(counts []Count, suffix string) string {
	return joinN(counts, 0, func(c Count) string {
		return fmt.Sprintf("%s (%d%s)", c.Label, c.Count, suffix)
	})
}

func joinN[T any](items []T, n int, format func(T) string) string {
	items = head(items, n)
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = format(it)
	}
	return strings.Join(parts, ", ")
}
