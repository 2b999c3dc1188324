package processing

import (
	"strings"
	"time"

	"github.com/navada/insightlab/internal/adzuna"
	"github.com/navada/insightlab/internal/dedupe"
	"github.com/navada/insightlab/internal/models"
)

const (
	// SourceName is stamped on every record produced from the jobs API.
	SourceName = "Adzuna API"

	maxDescriptionRunes = 500
)

// Normalize converts one search result into a JobRecord.
func Normalize(r adzuna.Result, fetchedAt time.Time) models.JobRecord {
	title := NormalizeText(r.Title)
	if title == "" {
		title = "Unknown"
	}
	company := NormalizeText(r.Company.DisplayName)
	if company == "" {
		company = "Unknown"
	}
	description := NormalizeText(r.Description)

	rec := models.JobRecord{
		ID:              strings.TrimSpace(r.ID),
		Title:           title,
		Company:         company,
		Location:        CleanLocation(r.Location.DisplayName),
		Category:        Category(title, description),
		ExperienceLevel: ExperienceLevel(title, description),
		WorkType:        WorkType(description),
		Skills:          Skills(description),
		Description:     Truncate(description, maxDescriptionRunes),
		PostedDate:      parsePosted(r.Created, fetchedAt),
		URL:             r.RedirectURL,
		Source:          SourceName,
		FetchedAt:       fetchedAt.UTC(),
	}

	rec.SalaryMin, rec.SalaryMax = positive(r.SalaryMin), positive(r.SalaryMax)
	if rec.SalaryMin == nil || rec.SalaryMax == nil {
		if lo, hi, ok := SalaryFromText(description); ok {
			rec.SalaryMin, rec.SalaryMax = models.Float(lo), models.Float(hi)
		}
	}

	if rec.ID == "" {
		rec.ID = BuildRecordID(title, company, rec.PostedDate.Format(time.RFC3339))
	}
	return rec
}

// NormalizeAll converts a batch of results, keeping the first listing for each
// title and company pair.
func NormalizeAll(results []adzuna.Result, fetchedAt time.Time) []models.JobRecord {
	seen := dedupe.NewCache(len(results), 24*time.Hour)
	out := make([]models.JobRecord, 0, len(results))
	for _, r := range results {
		rec := Normalize(r, fetchedAt)
		if !seen.Add(DedupeKey(rec.Title, rec.Company)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func parsePosted(raw string, fetchedAt time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fetchedAt.Add(-24 * time.Hour).UTC()
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return models.Float(*v)
}
