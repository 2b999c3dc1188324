package charts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/sentiment"
	"github.com/navada/insightlab/internal/snapshot"
)

// ManifestFile is written next to the images and lists every artifact.
const ManifestFile = "manifest.json"

const noDataText = "No data available"

// Input is everything a render pass draws from.
type Input struct {
	Dataset   *models.Dataset
	Sentiment sentiment.Analysis
}

// Manifest describes one render pass.
type Manifest struct {
	GeneratedAt time.Time                         `json:"generated_at"`
	Stale       bool                              `json:"stale"`
	Sources     map[models.Endpoint]models.Source `json:"sources"`
	Charts      []models.ChartArtifact            `json:"charts"`
}

// figure is a drawable chart: a single plot or a grid of plots.
type figure interface {
	encode(w, h vg.Length) (io.WriterTo, error)
}

type single struct{ *plot.Plot }

func (s single) encode(w, h vg.Length) (io.WriterTo, error) {
	return s.WriterTo(w, h, "png")
}

type grid [][]*plot.Plot

func (g grid) encode(w, h vg.Length) (io.WriterTo, error) {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(g),
		Cols:      len(g[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(g, tiles, dc)
	for row := range g {
		for col := range g[row] {
			if g[row][col] != nil {
				g[row][col].Draw(canvases[row][col])
			}
		}
	}
	return vgimg.PngCanvas{Canvas: img}, nil
}

// Renderer writes the chart catalogue into a directory.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	now    func() time.Time
	log    *slog.Logger
}

// NewRenderer returns a Renderer writing into dir.
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{
		dir:    dir,
		width:  12 * vg.Inch,
		height: 7 * vg.Inch,
		now:    time.Now,
		log:    logger,
	}
}

// RenderAll draws every catalogue entry. Entries with no rows become a
// placeholder image, so the full set of files always exists afterwards. A
// failure on one chart does not stop the others; all failures are returned
// together once the pass is complete.
func (r *Renderer) RenderAll(in Input) ([]models.ChartArtifact, error) {
	if in.Dataset == nil {
		in.Dataset = &models.Dataset{}
	}
	now := r.now().UTC()

	var errs []error
	artifacts := make([]models.ChartArtifact, 0, len(Catalogue))
	for _, entry := range Catalogue {
		art, err := r.render(entry, in, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("chart %s: %w", entry.ID, err))
			r.log.Error("chart render failed", "chart", entry.ID, "error", err)
		}
		artifacts = append(artifacts, art)
	}

	manifest := Manifest{
		GeneratedAt: now,
		Stale:       in.Dataset.Stale,
		Sources:     in.Dataset.Sources,
		Charts:      artifacts,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = snapshot.WriteAtomic(filepath.Join(r.dir, ManifestFile), data)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("write manifest: %w", err))
	}

	placeholders := 0
	for _, a := range artifacts {
		if a.Placeholder {
			placeholders++
		}
	}
	r.log.Info("charts rendered", "dir", r.dir, "charts", len(artifacts), "placeholders", placeholders, "failures", len(errs))

	return artifacts, errors.Join(errs...)
}

func (r *Renderer) render(entry Entry, in Input, now time.Time) (models.ChartArtifact, error) {
	art := models.ChartArtifact{
		ID:          entry.ID,
		Title:       entry.Title,
		Path:        filepath.Join(r.dir, entry.File),
		GeneratedAt: now,
	}

	res, buildErr := entry.build(in)
	art.Rows, art.Note = res.rows, res.note
	art.Source = entry.source(in.Dataset)

	fig := res.fig
	if buildErr != nil || res.rows == 0 || fig == nil {
		art.Rows = 0
		art.Placeholder = true
		art.Source = models.SourceNone
		fig = placeholder(entry.Title)
	}

	if err := r.write(art.Path, fig); err != nil {
		return art, errors.Join(buildErr, err)
	}
	return art, buildErr
}

func (r *Renderer) write(path string, fig figure) error {
	wt, err := fig.encode(r.width, r.height)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return snapshot.WriteAtomic(path, buf.Bytes())
}

func placeholder(title string) figure {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.HideAxes()

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0.5, Y: 0.5}},
		Labels: []string{noDataText},
	})
	if err == nil {
		for i := range labels.TextStyle {
			labels.TextStyle[i].XAlign = draw.XCenter
			labels.TextStyle[i].YAlign = draw.YCenter
			labels.TextStyle[i].Font.Size = vg.Points(20)
		}
		p.Add(labels)
	}
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	return single{p}
}
