package charts

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/models"
)

func sentimentRanking(in Input) (result, error) {
	companies := in.Sentiment.Companies
	if len(companies) > 15 {
		companies = companies[:15]
	}
	if len(companies) == 0 {
		return result{}, nil
	}

	labels := make([]string, len(companies))
	values := make([]float64, len(companies))
	for i, c := range companies {
		labels[i], values[i] = c.Company, c.Score
	}
	p, err := barPlot("Company Sentiment Ranking", "Mean sentiment score (-1 to 1)", labels, values, true, positiveC)
	return result{fig: single{p}, rows: len(companies)}, err
}

func sentimentSalary(in Input) (result, error) {
	var pts plotter.XYs
	for _, c := range in.Sentiment.Companies {
		if c.AvgSalary == nil {
			continue
		}
		pts = append(pts, plotter.XY{X: *c.AvgSalary, Y: c.Score})
	}
	if len(pts) == 0 {
		return result{}, nil
	}

	p := newPlot("Company Sentiment vs Average Salary", "Average salary (GBP)", "Mean sentiment score")
	p.X.Tick.Marker = poundTicks{}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return result{}, err
	}
	sc.GlyphStyle.Color = accent
	sc.GlyphStyle.Radius = vg.Points(4)
	p.Add(sc)
	return result{fig: single{p}, rows: len(pts)}, nil
}

func sentimentEngagement(in Input) (result, error) {
	companies := append([]models.CompanySentimentScore(nil), in.Sentiment.Companies...)
	sort.SliceStable(companies, func(i, j int) bool {
		if companies[i].AvgEngagement == companies[j].AvgEngagement {
			return companies[i].Company < companies[j].Company
		}
		return companies[i].AvgEngagement > companies[j].AvgEngagement
	})
	if len(companies) > 12 {
		companies = companies[:12]
	}
	if len(companies) == 0 {
		return result{}, nil
	}

	labels := make([]string, len(companies))
	values := make([]float64, len(companies))
	for i, c := range companies {
		labels[i], values[i] = c.Company, c.AvgEngagement
	}
	p, err := barPlot("Company Engagement Scores", "Mean engagement phrases per listing", labels, values, false, barColor)
	return result{fig: single{p}, rows: len(companies)}, err
}

// sentimentDistribution is a 2x2 panel over every scored listing: score
// histogram, positive vs negative counts, mean score per work type and
// engagement histogram.
func sentimentDistribution(in Input) (result, error) {
	jobs := in.Sentiment.Jobs
	if len(jobs) == 0 {
		return result{}, nil
	}

	scores := make(plotter.Values, len(jobs))
	engagement := make(plotter.Values, len(jobs))
	posNeg := make(plotter.XYs, len(jobs))
	byWork := make(map[string][]float64)
	for i, j := range jobs {
		scores[i] = j.Score
		engagement[i] = float64(j.Engagement)
		posNeg[i] = plotter.XY{X: float64(j.Positive), Y: float64(j.Negative)}
		byWork[j.WorkType] = append(byWork[j.WorkType], j.Score)
	}

	overall, err := histogram("Overall Sentiment Distribution", "Sentiment score", scores, 20, barColor)
	if err != nil {
		return result{}, err
	}

	scatter := newPlot("Positive vs Negative Sentiment", "Positive phrases", "Negative phrases")
	sc, err := plotter.NewScatter(posNeg)
	if err != nil {
		return result{}, err
	}
	sc.GlyphStyle.Color = negativeC
	sc.GlyphStyle.Radius = vg.Points(3)
	scatter.Add(sc)

	workTypes := make([]string, 0, len(byWork))
	for wt := range byWork {
		workTypes = append(workTypes, wt)
	}
	sort.Strings(workTypes)
	means := make([]float64, len(workTypes))
	for i, wt := range workTypes {
		means[i] = analytics.Mean(byWork[wt])
	}
	work, err := barPlot("Sentiment by Work Type", "Mean sentiment score", workTypes, means, false, positiveC)
	if err != nil {
		return result{}, err
	}

	eng, err := histogram("Engagement Score Distribution", "Engagement phrases", engagement, 15, positiveC)
	if err != nil {
		return result{}, err
	}

	return result{fig: grid{{overall, scatter}, {work, eng}}, rows: len(jobs)}, nil
}

func histogram(title, xLabel string, values plotter.Values, bins int, c color.Color) (*plot.Plot, error) {
	p := newPlot(title, xLabel, "Listings")
	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = c
	p.Add(h)
	return p, nil
}
