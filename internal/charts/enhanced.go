package charts

import (
	"fmt"

	"gonum.org/v1/plot/plotter"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/models"
)

func salaryHistogram(in Input) (result, error) {
	ds := in.Dataset
	buckets := ds.Histogram
	_, excluded := analytics.SalaryHistogram(ds.Jobs, analytics.HistogramWidth)

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total == 0 {
		return result{}, nil
	}

	labels := make([]string, len(buckets))
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		labels[i] = fmt.Sprintf("£%.0fk", b.Lower/1000)
		if b.Open {
			labels[i] += "+"
		}
		values[i] = float64(b.Count)
	}
	p, err := barPlot("UK AI Jobs Salary Distribution", "Number of jobs", labels, values, false, barColor)
	if err != nil {
		return result{}, err
	}

	res := result{fig: single{p}, rows: total}
	if ds.Sources[models.EndpointHistogram] == models.SourceDerived {
		res.note = fmt.Sprintf("excluded: %d", excluded)
		p.X.Label.Text = fmt.Sprintf("Salary band, £10k bins (excluded: %d without salary)", excluded)
	} else {
		p.X.Label.Text = "Salary band"
	}
	return res, nil
}

func companiesLeaderboard(in Input) (result, error) {
	top := in.Dataset.Companies
	if len(top) > analytics.LeaderboardSize {
		top = top[:analytics.LeaderboardSize]
	}
	if len(top) == 0 {
		return result{}, nil
	}

	labels := make([]string, len(top))
	values := make([]float64, len(top))
	for i, c := range top {
		labels[i] = c.Company
		if c.AvgSalary != nil {
			labels[i] = fmt.Sprintf("%s (avg %s)", c.Company, analytics.Pounds(*c.AvgSalary))
		}
		values[i] = float64(c.Count)
	}
	p, err := barPlot("Top Companies Leaderboard", "Number of job postings", labels, values, true, accent)
	return result{fig: single{p}, rows: len(top)}, err
}

func geographicDistribution(in Input) (result, error) {
	locs := in.Dataset.Locations
	if len(locs) > 15 {
		locs = locs[:15]
	}
	if len(locs) == 0 {
		return result{}, nil
	}

	labels := make([]string, len(locs))
	values := make([]float64, len(locs))
	for i, l := range locs {
		labels[i], values[i] = l.Location, float64(l.Count)
	}
	p, err := barPlot("Geographic Distribution of AI Jobs", "Number of jobs", labels, values, false, barColor)
	return result{fig: single{p}, rows: len(locs)}, err
}

func historicalTrends(in Input) (result, error) {
	hist := in.Dataset.History
	if len(hist) == 0 {
		return result{}, nil
	}

	pts := make(plotter.XYs, len(hist))
	for i, h := range hist {
		pts[i].X = float64(h.Month.Unix())
		pts[i].Y = h.AvgSalary
	}

	p := newPlot("Historical Salary Trends", "Month", "Average salary (GBP)")
	p.X.Tick.Marker = monthTicks()
	p.Y.Tick.Marker = poundTicks{}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return result{}, err
	}
	line.Color = accent
	line.Width = 2
	points.Color = accent
	p.Add(line, points)
	return result{fig: single{p}, rows: len(hist)}, nil
}
