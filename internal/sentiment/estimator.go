package sentiment

import (
	"sort"
	"strings"

	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/processing"
)

// MinCompanyJobs is the number of scored listings a company needs before it is ranked.
const MinCompanyJobs = 2

// Result is the lexicon match for one description.
type Result struct {
	Positive   int     `json:"positive"`
	Negative   int     `json:"negative"`
	Engagement int     `json:"engagement"`
	Words      int     `json:"words"`
	Score      float64 `json:"score"`
}

// JobScore pairs a listing with its description score.
type JobScore struct {
	Company  string   `json:"company"`
	WorkType string   `json:"work_type"`
	Salary   *float64 `json:"salary,omitempty"`
	Result
}

// Analysis is the outcome of scoring a whole dataset.
type Analysis struct {
	Jobs      []JobScore                     `json:"jobs"`
	Companies []models.CompanySentimentScore `json:"companies"`
	Excluded  int                            `json:"excluded"`
}

// Estimator scores descriptions against a lexicon. It holds no mutable state.
type Estimator struct {
	lex Lexicon
}

// New returns an Estimator for lex.
func New(lex Lexicon) *Estimator {
	return &Estimator{lex: lex.normalized()}
}

// Score rates text in [-1, 1]. Blank text is not scored and ok is false.
func (e *Estimator) Score(text string) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}

	lower := strings.ToLower(text)
	r := Result{
		Positive:   countPhrases(lower, e.lex.Positive),
		Negative:   countPhrases(lower, e.lex.Negative),
		Engagement: countPhrases(lower, e.lex.Engagement),
		Words:      len(processing.Tokens(text)),
	}

	scale := float64(r.Words) / 50
	if scale < 1 {
		scale = 1
	}
	r.Score = clamp(float64(r.Positive-r.Negative)/scale, -1, 1)
	return r, true
}

// Aggregate scores every listing and averages per company. Listings with an
// empty description are counted in Excluded; companies with fewer than
// minJobs scored listings are left out of Companies.
func (e *Estimator) Aggregate(jobs []models.JobRecord, minJobs int) Analysis {
	type acc struct {
		score, pos, neg, eng float64
		n                    int
		salSum               float64
		salN                 int
	}

	var out Analysis
	byCompany := make(map[string]*acc)
	for _, j := range jobs {
		r, ok := e.Score(j.Description)
		if !ok {
			out.Excluded++
			continue
		}

		js := JobScore{Company: j.Company, WorkType: j.WorkType, Result: r}
		if v, ok := j.Salary(); ok {
			js.Salary = models.Float(v)
		}
		out.Jobs = append(out.Jobs, js)

		a, ok := byCompany[j.Company]
		if !ok {
			a = &acc{}
			byCompany[j.Company] = a
		}
		a.n++
		a.score += r.Score
		a.pos += float64(r.Positive)
		a.neg += float64(r.Negative)
		a.eng += float64(r.Engagement)
		if js.Salary != nil {
			a.salSum += *js.Salary
			a.salN++
		}
	}

	for company, a := range byCompany {
		if a.n < minJobs {
			continue
		}
		n := float64(a.n)
		cs := models.CompanySentimentScore{
			Company:       company,
			Score:         a.score / n,
			Count:         a.n,
			AvgPositive:   a.pos / n,
			AvgNegative:   a.neg / n,
			AvgEngagement: a.eng / n,
		}
		if a.salN > 0 {
			cs.AvgSalary = models.Float(a.salSum / float64(a.salN))
		}
		out.Companies = append(out.Companies, cs)
	}
	sort.Slice(out.Companies, func(i, j int) bool {
		if out.Companies[i].Score == out.Companies[j].Score {
			return out.Companies[i].Company < out.Companies[j].Company
		}
		return out.Companies[i].Score > out.Companies[j].Score
	})
	return out
}

func countPhrases(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
