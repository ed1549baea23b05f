package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fall.report/internal/httputil"
)

// handleCostChart renders the run's cost series as an HTML line chart using
// go-echarts, with the trigger threshold drawn as a mark line and fall frames
// highlighted. Debugging endpoint; not part of the stable API.
// Query params:
//   - run_id (optional; defaults to the active run)
//   - max_points (optional; default 2000) to reduce payload size
func (ws *WebServer) handleCostChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = ws.runID
	}

	maxPoints := 2000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 10 && v <= 100000 {
			maxPoints = v
		}
	}

	series, err := ws.db.CostSeries(runID, maxPoints)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to load cost series: "+err.Error())
		return
	}
	if len(series) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no cost data recorded for run")
		return
	}

	xAxis := make([]string, 0, len(series))
	costData := make([]opts.LineData, 0, len(series))
	fallData := make([]opts.ScatterData, 0)
	for _, p := range series {
		xAxis = append(xAxis, strconv.FormatInt(p.FrameIndex, 10))
		if p.Cost == nil {
			// Gaps where no cost was computable stay gaps in the chart.
			costData = append(costData, opts.LineData{Value: nil})
			continue
		}
		costData = append(costData, opts.LineData{Value: *p.Cost})
		if p.IsFall {
			fallData = append(fallData, opts.ScatterData{Value: []interface{}{strconv.FormatInt(p.FrameIndex, 10), *p.Cost}})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fall Detection Cost", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-frame cost",
			Subtitle: fmt.Sprintf("run=%s method=%s threshold=%.2f", runID, ws.detector.Method(), ws.detector.Threshold()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cost"}),
	)

	line.SetXAxis(xAxis)
	line.AddSeries("cost", costData,
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: ws.detector.Threshold()}),
	)

	if len(fallData) > 0 {
		falls := charts.NewScatter()
		falls.AddSeries("falls", fallData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
		line.Overlap(falls)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
