package processing

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/navada/insightlab/internal/models"
)

const maxSkills = 6

type rule struct {
	label string
	terms []string
}

// Rules are checked in order; the first match wins.
var categoryRules = []rule{
	{label: "Research", terms: []string{"research", "scientist", "phd"}},
	{label: "Product & Management", terms: []string{"product manager", "product owner", "strategy"}},
	{label: "Specialized", terms: []string{"nlp", "natural language", "computer vision", "cv engineer"}},
	{label: "Data Science", terms: []string{"data scientist", "data analyst", "analytics"}},
}

var experienceRules = []rule{
	{label: "Principal", terms: []string{"principal", "head of", "director"}},
	{label: "Lead", terms: []string{"lead", "team lead", "tech lead"}},
	{label: "Senior", terms: []string{"senior", "sr.", "sr "}},
	{label: "Entry", terms: []string{"junior", "jr.", "graduate", "entry"}},
}

// ExperienceLevels lists levels from most junior to most senior.
var ExperienceLevels = []string{"Entry", "Mid", "Senior", "Lead", "Principal"}

var skillKeywords = []string{
	"python", "tensorflow", "pytorch", "scikit-learn", "pandas", "numpy",
	"aws", "azure", "gcp", "docker", "kubernetes", "sql", "mongodb",
	"spark", "hadoop", "kafka", "airflow", "mlflow", "cuda", "git",
	"transformers", "langchain", "openai", "hugging face", "bert",
	"react", "javascript", "node.js", "java", "scala", "r", "matlab",
	"tableau", "power bi", "jupyter", "anaconda", "linux",
}

var skillPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(skillKeywords))
	for i, kw := range skillKeywords {
		out[i] = regexp.MustCompile(`(?:^|[^a-z0-9])` + regexp.QuoteMeta(kw) + `(?:$|[^a-z0-9])`)
	}
	return out
}()

var locationAliases = map[string]string{
	"Greater London":                 "London",
	"City of London":                 "London",
	"Central London":                 "London",
	"Manchester, Greater Manchester": "Manchester",
	"Birmingham, West Midlands":      "Birmingham",
	"Edinburgh, Scotland":            "Edinburgh",
	"Glasgow, Scotland":              "Glasgow",
	"Cambridge, Cambridgeshire":      "Cambridge",
	"Oxford, Oxfordshire":            "Oxford",
	"Bristol, South West":            "Bristol",
	"Leeds, West Yorkshire":          "Leeds",
	"Newcastle upon Tyne":            "Newcastle",
}

var (
	salaryPounds   = regexp.MustCompile(`£(\d{2,3}),?(\d{3})\s*(?:-|–|to)\s*£(\d{2,3}),?(\d{3})`)
	salaryThousand = regexp.MustCompile(`£(\d{2,3})k\s*(?:-|–|to)\s*£?(\d{2,3})k`)
	salaryPlain    = regexp.MustCompile(`(\d{2,3}),?(\d{3})\s*(?:-|–|to)\s*(\d{2,3}),?(\d{3})`)
)

var titleCaser = cases.Title(language.English)

// Category assigns one of the dashboard job categories, defaulting to Engineering.
func Category(title, description string) string {
	return firstMatch(categoryRules, title+" "+description, "Engineering")
}

// ExperienceLevel infers seniority from title and description, defaulting to Mid.
func ExperienceLevel(title, description string) string {
	return firstMatch(experienceRules, title+" "+description, "Mid")
}

// WorkType infers the work arrangement, defaulting to Hybrid.
func WorkType(description string) string {
	text := strings.ToLower(description)
	switch {
	case containsAny(text, "remote", "work from home", "wfh"):
		if containsAny(text, "hybrid", "flexible", "office days") {
			return models.WorkHybrid
		}
		return models.WorkRemote
	case containsAny(text, "on-site", "office-based", "in office"):
		return models.WorkOnsite
	default:
		return models.WorkHybrid
	}
}

// Skills returns up to six known technologies mentioned in the description.
func Skills(description string) []string {
	text := strings.ToLower(description)
	var found []string
	for i, re := range skillPatterns {
		if re.MatchString(text) {
			found = append(found, titleCaser.String(skillKeywords[i]))
			if len(found) == maxSkills {
				break
			}
		}
	}
	return found
}

// CleanLocation maps common long-form region names onto the city used in charts.
func CleanLocation(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return "UK"
	}
	if alias, ok := locationAliases[location]; ok {
		return alias
	}
	return location
}

// SalaryFromText pulls a salary range out of free text. ok is false when no
// recognised pattern is present.
func SalaryFromText(text string) (lo, hi float64, ok bool) {
	text = strings.ToLower(text)

	if m := salaryPounds.FindStringSubmatch(text); m != nil {
		return atof(m[1] + m[2]), atof(m[3] + m[4]), true
	}
	if m := salaryThousand.FindStringSubmatch(text); m != nil {
		return atof(m[1]) * 1000, atof(m[2]) * 1000, true
	}
	if m := salaryPlain.FindStringSubmatch(text); m != nil {
		return atof(m[1] + m[2]), atof(m[3] + m[4]), true
	}
	return 0, 0, false
}

func firstMatch(rules []rule, text, fallback string) string {
	text = strings.ToLower(text)
	for _, r := range rules {
		if containsAny(text, r.terms...) {
			return r.label
		}
	}
	return fallback
}

func containsAny(text string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
