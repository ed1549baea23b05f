// Package db persists detection runs, per-frame costs and fall events to
// sqlite. Storage is an adapter over the pipeline's ResultSink contract; the
// stage packages never import it.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle with fall-detection recorders.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path. Schema is managed by
// MigrateUp; callers should run it before recording.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Frame results arrive one insert at a time; WAL keeps readers
	// (monitor queries) from blocking the frame loop.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &DB{db}, nil
}

// Run describes one detection run over a single stream.
type Run struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Method    string    `json:"method"`
	Threshold float64   `json:"threshold"`
	StartedAt time.Time `json:"started_at"`
}

// CreateRun registers a new detection run and returns its ID.
func (db *DB) CreateRun(source, method string, threshold float64) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, source, method, threshold) VALUES (?, ?, ?, ?)`,
		runID, source, method, threshold,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

// RecordFrameCost stores one sampled frame's result. Invalid costs are stored
// with a NULL cost column so "no data" stays distinct from zero.
func (db *DB) RecordFrameCost(runID string, frameIndex int64, cost float64, costValid bool, undefinedAngles int, isFall bool, state string) error {
	var costVal interface{}
	if costValid {
		costVal = cost
	}
	_, err := db.Exec(
		`INSERT INTO frame_costs (run_id, frame_index, cost, undefined_angles, is_fall, state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, frameIndex, costVal, undefinedAngles, isFall, state,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame cost: %w", err)
	}
	return nil
}

// RecordFallEvent stores a triggered fall and returns the event ID.
func (db *DB) RecordFallEvent(runID string, frameIndex int64, cost float64) (string, error) {
	eventID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO fall_events (event_id, run_id, frame_index, cost) VALUES (?, ?, ?, ?)`,
		eventID, runID, frameIndex, cost,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record fall event: %w", err)
	}
	return eventID, nil
}

// CostPoint is one element of a run's cost series.
type CostPoint struct {
	FrameIndex int64    `json:"frame_index"`
	Cost       *float64 `json:"cost"` // nil when the frame produced no cost
	IsFall     bool     `json:"is_fall"`
}

// CostSeries returns the recorded cost series for a run, oldest first,
// capped at limit points (0 means no cap).
func (db *DB) CostSeries(runID string, limit int) ([]CostPoint, error) {
	query := `SELECT frame_index, cost, is_fall FROM frame_costs WHERE run_id = ? ORDER BY frame_index`
	args := []interface{}{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost series: %w", err)
	}
	defer rows.Close()

	var series []CostPoint
	for rows.Next() {
		var p CostPoint
		var cost sql.NullFloat64
		if err := rows.Scan(&p.FrameIndex, &cost, &p.IsFall); err != nil {
			return nil, fmt.Errorf("failed to scan cost point: %w", err)
		}
		if cost.Valid {
			p.Cost = &cost.Float64
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// FallEvent is a recorded fall trigger.
type FallEvent struct {
	EventID    string    `json:"event_id"`
	RunID      string    `json:"run_id"`
	FrameIndex int64     `json:"frame_index"`
	Cost       float64   `json:"cost"`
	Timestamp  time.Time `json:"timestamp"`
}

// FallEvents returns the fall events for a run, oldest first.
func (db *DB) FallEvents(runID string) ([]FallEvent, error) {
	rows, err := db.Query(
		`SELECT event_id, run_id, frame_index, cost, timestamp FROM fall_events WHERE run_id = ? ORDER BY frame_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fall events: %w", err)
	}
	defer rows.Close()

	var events []FallEvent
	for rows.Next() {
		var e FallEvent
		if err := rows.Scan(&e.EventID, &e.RunID, &e.FrameIndex, &e.Cost, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan fall event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LatestRun returns the most recently started run, or sql.ErrNoRows.
func (db *DB) LatestRun() (*Run, error) {
	var r Run
	err := db.QueryRow(
		`SELECT run_id, source, method, threshold, started_at FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&r.RunID, &r.Source, &r.Method, &r.Threshold, &r.StartedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
