package sentiment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/navada/insightlab/internal/models"
)

func TestScore(t *testing.T) {
	est := New(DefaultLexicon())

	cases := []struct {
		name  string
		text  string
		score float64
		ok    bool
	}{
		{name: "blank", text: "   ", ok: false},
		{name: "positive", text: "An innovative and supportive team", score: 1, ok: true},
		{name: "negative", text: "Stressful role with overtime", score: -1, ok: true},
		{name: "neutral", text: "Python role", score: 0, ok: true},
		{
			name:  "long text is scaled",
			text:  "innovative " + strings.Repeat("word ", 99),
			score: 0.5,
			ok:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := est.Score(tc.text)
			require.Equal(t, tc.ok, ok)
			require.InDelta(t, tc.score, r.Score, 1e-9)
			require.GreaterOrEqual(t, r.Score, -1.0)
			require.LessOrEqual(t, r.Score, 1.0)
		})
	}
}

func TestScoreCountsEngagement(t *testing.T) {
	r, ok := New(DefaultLexicon()).Score("Hybrid team with mentorship and a great culture")
	require.True(t, ok)
	require.Equal(t, 4, r.Engagement)
}

func TestScoreDeterministic(t *testing.T) {
	est := New(DefaultLexicon())
	text := "Exciting, fast-paced and collaborative environment with tight deadlines"
	first, _ := est.Score(text)
	for i := 0; i < 5; i++ {
		again, _ := est.Score(text)
		require.Equal(t, first, again)
	}
}

func TestAggregate(t *testing.T) {
	jobs := []models.JobRecord{
		{Company: "Acme", Description: "innovative team", SalaryMin: models.Float(60000)},
		{Company: "Acme", Description: "stressful", SalaryMin: models.Float(80000)},
		{Company: "Acme", Description: ""},
		{Company: "Solo", Description: "excellent"},
		{Company: "Globex", Description: "excellent benefits"},
		{Company: "Globex", Description: "modern office"},
	}

	a := New(DefaultLexicon()).Aggregate(jobs, MinCompanyJobs)
	require.Equal(t, 1, a.Excluded)
	require.Len(t, a.Jobs, 5)
	require.Len(t, a.Companies, 2)

	require.Equal(t, "Globex", a.Companies[0].Company)
	require.InDelta(t, 1.0, a.Companies[0].Score, 1e-9)
	require.Nil(t, a.Companies[0].AvgSalary)

	acme := a.Companies[1]
	require.Equal(t, "Acme", acme.Company)
	require.Equal(t, 2, acme.Count)
	require.InDelta(t, 0.0, acme.Score, 1e-9)
	require.InDelta(t, 70000, *acme.AvgSalary, 0.01)
	require.InDelta(t, 0.5, acme.AvgEngagement, 1e-9)
}

func TestLoadLexiconOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positive:\n  - Generous\nnegative: []\n"), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	require.Equal(t, []string{"generous"}, lex.Positive)
	require.Equal(t, DefaultLexicon().Negative, lex.Negative)

	r, ok := New(lex).Score("Generous pension")
	require.True(t, ok)
	require.Equal(t, 1, r.Positive)
}

func TestLoadLexiconErrors(t *testing.T) {
	_, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positive: [unterminated"), 0o644))
	_, err = LoadLexicon(path)
	require.Error(t, err)
}

func TestLoadLexiconEmptyPath(t *testing.T) {
	lex, err := LoadLexicon("")
	require.NoError(t, err)
	require.Equal(t, DefaultLexicon(), lex)
}
