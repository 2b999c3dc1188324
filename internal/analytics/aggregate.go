package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/processing"
)

// HistogramWidth is the fixed salary bin width in pounds.
const HistogramWidth = 10000

// MaxHistogramBuckets bounds the derived histogram. Salaries past the last
// regular bin are clipped into a final open-ended bucket.
const MaxHistogramBuckets = 30

// Count is a labelled tally.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Group is a labelled set of salary observations.
type Group struct {
	Label  string
	Values []float64
}

// DayCount is the number of listings posted on one calendar day.
type DayCount struct {
	Day   time.Time
	Count int
}

type tally struct {
	count int
	sum   float64
	n     int
}

func (t tally) avg() *float64 {
	if t.n == 0 {
		return nil
	}
	return models.Float(t.sum / float64(t.n))
}

// TopCompanies ranks employers by listing count, ties broken by name. n <= 0 keeps all.
func TopCompanies(jobs []models.JobRecord, n int) []models.CompanyCount {
	byName := tallyBy(jobs, func(j models.JobRecord) string { return j.Company })
	out := make([]models.CompanyCount, 0, len(byName))
	for name, t := range byName {
		out = append(out, models.CompanyCount{Company: name, Count: t.count, AvgSalary: t.avg()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Company < out[j].Company
		}
		return out[i].Count > out[j].Count
	})
	return head(out, n)
}

// LocationCounts ranks locations by listing count, ties broken by name. n <= 0 keeps all.
func LocationCounts(jobs []models.JobRecord, n int) []models.LocationCount {
	byName := tallyBy(jobs, func(j models.JobRecord) string { return j.Location })
	out := make([]models.LocationCount, 0, len(byName))
	for name, t := range byName {
		out = append(out, models.LocationCount{Location: name, Count: t.count, AvgSalary: t.avg()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Location < out[j].Location
		}
		return out[i].Count > out[j].Count
	})
	return head(out, n)
}

// SalaryHistogram bins known salaries into contiguous fixed-width buckets
// starting at the smallest salary rounded down to the width. Listings without
// a salary are not binned and are reported as excluded.
func SalaryHistogram(jobs []models.JobRecord, width float64) (buckets []models.SalaryBucket, excluded int) {
	if width <= 0 {
		width = HistogramWidth
	}

	salaries := make([]float64, 0, len(jobs))
	for _, j := range jobs {
		if v, ok := j.Salary(); ok {
			salaries = append(salaries, v)
		} else {
			excluded++
		}
	}
	if len(salaries) == 0 {
		return nil, excluded
	}

	lo, hi := salaries[0], salaries[0]
	for _, v := range salaries[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	start := math.Floor(lo/width) * width
	n := MaxHistogramBuckets
	if span := math.Floor((hi - start) / width); span < float64(MaxHistogramBuckets) {
		n = int(span) + 1
	}

	buckets = make([]models.SalaryBucket, n)
	for i := range buckets {
		lower := start + float64(i)*width
		buckets[i] = models.SalaryBucket{Lower: lower, Upper: lower + width}
	}
	if last := &buckets[n-1]; hi >= last.Upper {
		last.Upper = hi
		last.Open = true
	}
	for _, v := range salaries {
		idx := int(math.Floor((v - start) / width))
		if idx >= n {
			idx = n - 1
		}
		buckets[idx].Count++
	}
	return buckets, excluded
}

// SalaryByExperience groups known salaries by experience level, most junior first.
// Levels with no salaries are omitted.
func SalaryByExperience(jobs []models.JobRecord) []Group {
	byLevel := make(map[string][]float64)
	for _, j := range jobs {
		if v, ok := j.Salary(); ok {
			byLevel[j.ExperienceLevel] = append(byLevel[j.ExperienceLevel], v)
		}
	}

	var out []Group
	for _, level := range processing.ExperienceLevels {
		if vals := byLevel[level]; len(vals) > 0 {
			out = append(out, Group{Label: level, Values: vals})
			delete(byLevel, level)
		}
	}
	extra := make([]string, 0, len(byLevel))
	for level := range byLevel {
		extra = append(extra, level)
	}
	sort.Strings(extra)
	for _, level := range extra {
		out = append(out, Group{Label: level, Values: byLevel[level]})
	}
	return out
}

// SalaryByLocation returns salary groups for the n busiest locations that have
// at least minSalaries known salaries.
func SalaryByLocation(jobs []models.JobRecord, n, minSalaries int) []Group {
	byLoc := make(map[string][]float64)
	for _, j := range jobs {
		if v, ok := j.Salary(); ok {
			byLoc[j.Location] = append(byLoc[j.Location], v)
		}
	}

	var out []Group
	for _, lc := range LocationCounts(jobs, 0) {
		vals := byLoc[lc.Location]
		if len(vals) < minSalaries {
			continue
		}
		out = append(out, Group{Label: lc.Location, Values: vals})
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// SkillCounts tallies skill mentions across listings.
func SkillCounts(jobs []models.JobRecord, n int) []Count {
	counts := make(map[string]int)
	for _, j := range jobs {
		for _, s := range j.Skills {
			if s = strings.TrimSpace(s); s != "" {
				counts[s]++
			}
		}
	}
	return rank(counts, n)
}

// WorkTypeCounts tallies work arrangements.
func WorkTypeCounts(jobs []models.JobRecord) []Count {
	return countField(jobs, func(j models.JobRecord) string { return j.WorkType })
}

// CategoryCounts tallies job categories.
func CategoryCounts(jobs []models.JobRecord) []Count {
	return countField(jobs, func(j models.JobRecord) string { return j.Category })
}

// ExperienceCounts tallies experience levels.
func ExperienceCounts(jobs []models.JobRecord) []Count {
	return countField(jobs, func(j models.JobRecord) string { return j.ExperienceLevel })
}

// DailyPostings counts listings per posting day, oldest first. Days without
// postings inside the observed range are filled with zero.
func DailyPostings(jobs []models.JobRecord) []DayCount {
	counts := make(map[time.Time]int)
	var first, last time.Time
	for _, j := range jobs {
		if j.PostedDate.IsZero() {
			continue
		}
		d := truncateDay(j.PostedDate)
		counts[d]++
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if len(counts) == 0 {
		return nil
	}

	var out []DayCount
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, DayCount{Day: d, Count: counts[d]})
	}
	return out
}

// MonthlySalary averages known salaries per posting month, oldest first.
func MonthlySalary(jobs []models.JobRecord) []models.HistoryPoint {
	byMonth := make(map[time.Time]*tally)
	for _, j := range jobs {
		v, ok := j.Salary()
		if !ok || j.PostedDate.IsZero() {
			continue
		}
		p := j.PostedDate.UTC()
		m := time.Date(p.Year(), p.Month(), 1, 0, 0, 0, 0, time.UTC)
		t, ok := byMonth[m]
		if !ok {
			t = &tally{}
			byMonth[m] = t
		}
		t.sum += v
		t.n++
	}

	out := make([]models.HistoryPoint, 0, len(byMonth))
	for m, t := range byMonth {
		out = append(out, models.HistoryPoint{Month: m, AvgSalary: t.sum / float64(t.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// LinearTrend fits y = slope*x + intercept over x = 0..len(ys)-1 by least squares.
func LinearTrend(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	switch len(ys) {
	case 0:
		return 0, 0
	case 1:
		return 0, ys[0]
	}

	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

// DistinctCategories lists the categories present in jobs, sorted by label.
func DistinctCategories(jobs []models.JobRecord) []models.Category {
	seen := make(map[string]bool)
	var out []models.Category
	for _, j := range jobs {
		label := strings.TrimSpace(j.Category)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, models.Category{Tag: slug(label), Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SalaryStats summarises known salaries.
type SalaryStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Salaries computes SalaryStats over every listing with a known salary.
// Min and Max use the raw range bounds.
func Salaries(jobs []models.JobRecord) SalaryStats {
	var vals []float64
	st := SalaryStats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, j := range jobs {
		v, ok := j.Salary()
		if !ok {
			continue
		}
		vals = append(vals, v)
		lo, hi := v, v
		if j.SalaryMin != nil {
			lo = *j.SalaryMin
		}
		if j.SalaryMax != nil {
			hi = *j.SalaryMax
		}
		st.Min = math.Min(st.Min, lo)
		st.Max = math.Max(st.Max, hi)
	}
	if len(vals) == 0 {
		return SalaryStats{}
	}
	st.Count = len(vals)
	st.Mean = Mean(vals)
	st.Median = Median(vals)
	return st
}

// Mean returns the arithmetic mean of vals, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Median returns the median of vals without modifying it.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func tallyBy(jobs []models.JobRecord, key func(models.JobRecord) string) map[string]tally {
	out := make(map[string]tally)
	for _, j := range jobs {
		k := strings.TrimSpace(key(j))
		if k == "" {
			continue
		}
		t := out[k]
		t.count++
		if v, ok := j.Salary(); ok {
			t.sum += v
			t.n++
		}
		out[k] = t
	}
	return out
}

func countField(jobs []models.JobRecord, key func(models.JobRecord) string) []Count {
	counts := make(map[string]int)
	for _, j := range jobs {
		if k := strings.TrimSpace(key(j)); k != "" {
			counts[k]++
		}
	}
	return rank(counts, 0)
}

func rank(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for label, c := range counts {
		out = append(out, Count{Label: label, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Label < out[j].Label
		}
		return out[i].Count > out[j].Count
	})
	return head(out, n)
}

func head[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
