package charts

import (
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/navada/insightlab/internal/analytics"
)

func companiesHiring(in Input) (result, error) {
	top := analytics.TopCompanies(in.Dataset.Jobs, 15)
	if len(top) == 0 {
		return result{}, nil
	}
	labels := make([]string, len(top))
	values := make([]float64, len(top))
	for i, c := range top {
		labels[i], values[i] = c.Company, float64(c.Count)
	}
	p, err := barPlot("Top Companies Hiring for AI Roles", "Number of job postings", labels, values, true, barColor)
	return result{fig: single{p}, rows: len(top)}, err
}

func locationDistribution(in Input) (result, error) {
	top := analytics.LocationCounts(in.Dataset.Jobs, 12)
	if len(top) == 0 {
		return result{}, nil
	}
	labels := make([]string, len(top))
	values := make([]float64, len(top))
	for i, l := range top {
		labels[i], values[i] = l.Location, float64(l.Count)
	}
	p, err := barPlot("AI Jobs by Location", "Number of jobs", labels, values, false, barColor)
	return result{fig: single{p}, rows: len(top)}, err
}

func salaryByExperience(in Input) (result, error) {
	groups := analytics.SalaryByExperience(in.Dataset.Jobs)
	if len(groups) == 0 {
		return result{}, nil
	}
	p, err := boxPlot("Salary Distribution by Experience Level", groups)
	if err != nil {
		return result{}, err
	}
	p.X.Label.Text = "Experience level"
	return result{fig: single{p}, rows: countValues(groups)}, nil
}

func requiredSkills(in Input) (result, error) {
	return countBars(analytics.SkillCounts(in.Dataset.Jobs, 15), "Most In-Demand Skills", "Mentions", true)
}

func workType(in Input) (result, error) {
	return countBars(analytics.WorkTypeCounts(in.Dataset.Jobs), "Work Arrangements", "Number of jobs", false)
}

func jobCategories(in Input) (result, error) {
	return countBars(analytics.CategoryCounts(in.Dataset.Jobs), "Job Categories", "Number of jobs", false)
}

func salaryByLocation(in Input) (result, error) {
	groups := analytics.SalaryByLocation(in.Dataset.Jobs, 8, 3)
	if len(groups) == 0 {
		return result{}, nil
	}
	p, err := boxPlot("Salary Ranges by Location", groups)
	if err != nil {
		return result{}, err
	}
	p.X.Label.Text = "Location"
	return result{fig: single{p}, rows: countValues(groups)}, nil
}

func postingTimeline(in Input) (result, error) {
	days := analytics.DailyPostings(in.Dataset.Jobs)
	if len(days) == 0 {
		return result{}, nil
	}

	pts := make(plotter.XYs, len(days))
	counts := make([]float64, len(days))
	for i, d := range days {
		pts[i].X = float64(d.Day.Unix())
		pts[i].Y = float64(d.Count)
		counts[i] = float64(d.Count)
	}

	p := newPlot("Job Posting Timeline", "Posted", "Jobs posted")
	p.X.Tick.Marker = plot.TimeTicks{Format: "02 Jan"}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return result{}, err
	}
	line.Color = barColor
	points.Color = barColor
	p.Add(line, points)
	p.Legend.Add("daily postings", line, points)

	if len(days) > 1 {
		slope, intercept := analytics.LinearTrend(counts)
		trend := make(plotter.XYs, len(days))
		for i := range days {
			trend[i].X = pts[i].X
			trend[i].Y = slope*float64(i) + intercept
		}
		tl, err := plotter.NewLine(trend)
		if err != nil {
			return result{}, err
		}
		tl.Color = trendColor
		tl.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(tl)
		p.Legend.Add(fmt.Sprintf("trend (%+.2f/day)", slope), tl)
	}
	p.Legend.Top = true
	p.Y.Min = 0

	rows := 0
	for _, d := range days {
		rows += d.Count
	}
	return result{fig: single{p}, rows: rows}, nil
}

func countBars(counts []analytics.Count, title, valueLabel string, horizontal bool) (result, error) {
	if len(counts) == 0 {
		return result{}, nil
	}
	labels := make([]string, len(counts))
	values := make([]float64, len(counts))
	for i, c := range counts {
		labels[i], values[i] = c.Label, float64(c.Count)
	}
	p, err := barPlot(title, valueLabel, labels, values, horizontal, barColor)
	return result{fig: single{p}, rows: len(counts)}, err
}

func countValues(groups []analytics.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Values)
	}
	return n
}

func monthTicks() plot.Ticker {
	return plot.TimeTicks{Format: "Jan 2006", Time: func(t float64) time.Time { return time.Unix(int64(t), 0).UTC() }}
}
