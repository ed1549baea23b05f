// Package monitor exposes an HTTP surface over a running fall detector:
// status and result queries, keypoint-frame ingest, and cost-series
// visualisations.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/banshee-data/fall.report/internal/db"
	"github.com/banshee-data/fall.report/internal/httputil"
	"github.com/banshee-data/fall.report/internal/monitoring"
	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
	"github.com/banshee-data/fall.report/internal/pose/pipeline"
)

// WebServer serves the monitoring API for one detector/run pair.
type WebServer struct {
	address  string
	detector *pipeline.Detector
	db       *db.DB
	runID    string
	server   *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Detector *pipeline.Detector
	DB       *db.DB
	RunID    string
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  config.Address,
		detector: config.Detector,
		db:       config.DB,
		runID:    config.RunID,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fall/status", ws.handleStatus)
	mux.HandleFunc("/api/fall/costs", ws.handleCosts)
	mux.HandleFunc("/api/fall/events", ws.handleEvents)
	mux.HandleFunc("/api/fall/frame", ws.handleIngestFrame)
	mux.HandleFunc("/debug/costs/chart", ws.handleCostChart)
	mux.HandleFunc("/debug/costs/plot.png", ws.handleCostPlotPNG)
	return mux
}

// Start begins the HTTP server in a goroutine and shuts it down when the
// context is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}
	}()

	return nil
}

// handleStatus reports the detector configuration and counters.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":    ws.runID,
		"method":    ws.detector.Method().String(),
		"threshold": ws.detector.Threshold(),
		"stats":     ws.detector.Stats(),
	})
}

// handleCosts returns the recorded cost series for the current (or requested) run.
func (ws *WebServer) handleCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
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
	httputil.WriteJSONOK(w, map[string]interface{}{"run_id": runID, "costs": series})
}

// handleEvents returns the fall events for the current (or requested) run.
func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = ws.runID
	}

	events, err := ws.db.FallEvents(runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to load fall events: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"run_id": runID, "events": events})
}

// ingestFrame is the wire form accepted by handleIngestFrame; matches the
// JSONL replay format so a pose model can target either path.
type ingestFrame struct {
	Frame          int64         `json:"frame"`
	TimestampNanos int64         `json:"timestamp_nanos"`
	Keypoints      []*[3]float64 `json:"keypoints"`
}

// handleIngestFrame accepts one keypoint frame from a live pose model and
// returns the per-frame decision. Frames are serialised by the detector, so
// concurrent posts cannot interleave pipeline state.
func (ws *WebServer) handleIngestFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var in ingestFrame
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(in.Keypoints) != l1keypoints.NumRawLandmarks {
		httputil.WriteJSONError(w, http.StatusBadRequest, "keypoints must have 17 entries in COCO order")
		return
	}

	kps := make([]l1keypoints.Keypoint, l1keypoints.NumRawLandmarks)
	for i, entry := range in.Keypoints {
		if entry == nil {
			continue
		}
		kps[i] = l1keypoints.Keypoint{
			Point:      l1keypoints.Point{X: entry[0], Y: entry[1]},
			Confidence: entry[2],
			Present:    true,
		}
	}

	frame, err := l1keypoints.NewFrame(in.Frame, time.Unix(0, in.TimestampNanos), kps)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputil.WriteJSONOK(w, ws.detector.ProcessFrame(frame))
}
