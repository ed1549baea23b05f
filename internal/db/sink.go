package db

import (
	"fmt"

	"github.com/banshee-data/fall.report/internal/pose/pipeline"
)

// RunRecorder adapts a DB to the pipeline's ResultSink contract, binding
// every recorded result to one run.
type RunRecorder struct {
	db    *DB
	runID string
}

// NewRunRecorder creates the run row and returns a recorder bound to it.
func NewRunRecorder(db *DB, source, method string, threshold float64) (*RunRecorder, error) {
	runID, err := db.CreateRun(source, method, threshold)
	if err != nil {
		return nil, err
	}
	return &RunRecorder{db: db, runID: runID}, nil
}

// RunID returns the run this recorder writes to.
func (r *RunRecorder) RunID() string { return r.runID }

// RecordResult persists one frame result, plus a fall event when the frame
// triggered one.
func (r *RunRecorder) RecordResult(res pipeline.Result) error {
	err := r.db.RecordFrameCost(
		r.runID, res.FrameIndex,
		res.Smoothed.Value, res.Smoothed.Valid,
		res.Undefined, res.IsFall, string(res.State),
	)
	if err != nil {
		return err
	}

	if res.IsFall {
		if _, err := r.db.RecordFallEvent(r.runID, res.FrameIndex, res.Smoothed.Value); err != nil {
			return fmt.Errorf("frame recorded but fall event failed: %w", err)
		}
	}
	return nil
}
