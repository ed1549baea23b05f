package pipeline

import (
	"errors"
	"io"
	"time"

	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
	"github.com/banshee-data/fall.report/internal/timeutil"
)

// FrameSource yields keypoint frames until io.EOF. l1keypoints.Reader is the
// JSONL implementation; tests provide in-memory sources.
type FrameSource interface {
	Next() (*l1keypoints.Frame, error)
}

// Replay feeds every frame from src through the detector in order. When
// realtime is true, frames are paced by their recorded timestamps using the
// supplied clock; otherwise they are processed as fast as they decode.
// onResult, if non-nil, is called with every frame's result. Returns nil on
// clean end of stream.
func Replay(src FrameSource, d *Detector, clock timeutil.Clock, realtime bool, onResult func(Result)) error {
	var prevFrameTime time.Time
	var prevWallTime time.Time

	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if realtime && !prevFrameTime.IsZero() {
			gap := frame.Timestamp.Sub(prevFrameTime)
			elapsed := clock.Since(prevWallTime)
			if wait := gap - elapsed; wait > 0 {
				clock.Sleep(wait)
			}
		}
		prevFrameTime = frame.Timestamp
		prevWallTime = clock.Now()

		res := d.ProcessFrame(frame)
		if onResult != nil {
			onResult(res)
		}
	}
}
