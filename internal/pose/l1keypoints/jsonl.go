package l1keypoints

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// frameRecord is the wire form of one pose-model output line. The keypoints
// array is in COCO-17 order; a null entry means the landmark was not detected.
type frameRecord struct {
	Frame          int64        `json:"frame"`
	TimestampNanos int64        `json:"timestamp_nanos"`
	Keypoints      []*[3]float64 `json:"keypoints"`
}

// Reader decodes a JSONL keypoint stream, one frame per line. It is the
// replay-file implementation of the pipeline's keypoint source; a live pose
// model can feed frames through the same Frame type directly.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps r in a JSONL frame reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	// Frames with 17 keypoints fit comfortably, but leave headroom for
	// streams that carry extra metadata per line.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

// Next returns the next frame in the stream, or io.EOF when exhausted.
// Blank lines are skipped. A malformed line is an error, not a skip: replay
// files are machine-written and corruption should surface immediately.
func (r *Reader) Next() (*Frame, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec frameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: decode frame: %w", r.line, err)
		}
		if len(rec.Keypoints) != NumRawLandmarks {
			return nil, fmt.Errorf("line %d: expected %d keypoints, got %d", r.line, NumRawLandmarks, len(rec.Keypoints))
		}

		kps := make([]Keypoint, NumRawLandmarks)
		for i, entry := range rec.Keypoints {
			if entry == nil {
				continue
			}
			kps[i] = Keypoint{
				Point:      Point{X: entry[0], Y: entry[1]},
				Confidence: entry[2],
				Present:    true,
			}
		}

		frame, err := NewFrame(rec.Frame, time.Unix(0, rec.TimestampNanos), kps)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return frame, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keypoint stream: %w", err)
	}
	return nil, io.EOF
}
