package monitor

import (
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/fall.report/internal/db"
	"github.com/banshee-data/fall.report/internal/httputil"
)

// handleCostPlotPNG renders the run's cost series as a static PNG using
// gonum/plot: a cost line, a horizontal threshold line, and one glyph per
// fall trigger. Useful for embedding in reports where the interactive chart
// is overkill.
func (ws *WebServer) handleCostPlotPNG(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = ws.runID
	}

	series, err := ws.db.CostSeries(runID, 0)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to load cost series: "+err.Error())
		return
	}
	if len(series) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no cost data recorded for run")
		return
	}

	img, err := renderCostPlot(series, ws.detector.Threshold(), runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		// Headers are already out; just log via the error path available here.
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to write png: "+err.Error())
	}
}

// renderCostPlot builds the plot canvas for a cost series.
func renderCostPlot(series []db.CostPoint, threshold float64, runID string) (*vgimg.Canvas, error) {
	p := plot.New()
	p.Title.Text = "Fall detection cost, run " + runID
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Cost"

	costPts := make(plotter.XYs, 0, len(series))
	fallPts := make(plotter.XYs, 0)
	for _, pt := range series {
		if pt.Cost == nil {
			continue
		}
		xy := plotter.XY{X: float64(pt.FrameIndex), Y: *pt.Cost}
		costPts = append(costPts, xy)
		if pt.IsFall {
			fallPts = append(fallPts, xy)
		}
	}
	if len(costPts) == 0 {
		return nil, fmt.Errorf("cost series has no defined values")
	}

	costLine, err := plotter.NewLine(costPts)
	if err != nil {
		return nil, err
	}
	costLine.Width = vg.Points(1)
	p.Add(costLine)
	p.Legend.Add("cost", costLine)

	// Threshold as a horizontal line across the plotted frame range.
	thrPts := plotter.XYs{
		{X: costPts[0].X, Y: threshold},
		{X: costPts[len(costPts)-1].X, Y: threshold},
	}
	thrLine, err := plotter.NewLine(thrPts)
	if err != nil {
		return nil, err
	}
	thrLine.Width = vg.Points(1)
	thrLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	thrLine.Color = color.RGBA{R: 200, A: 255}
	p.Add(thrLine)
	p.Legend.Add("threshold "+strconv.FormatFloat(threshold, 'f', -1, 64), thrLine)

	if len(fallPts) > 0 {
		falls, err := plotter.NewScatter(fallPts)
		if err != nil {
			return nil, err
		}
		falls.GlyphStyle.Shape = draw.CircleGlyph{}
		falls.GlyphStyle.Radius = vg.Points(3)
		falls.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
		p.Add(falls)
		p.Legend.Add("falls", falls)
	}

	img := vgimg.New(10*vg.Inch, 5*vg.Inch)
	dc := draw.New(img)
	p.Draw(dc)
	return img, nil
}
