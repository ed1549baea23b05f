package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the fall-detection
// engine. All fields are optional pointers so a partial JSON file only
// overrides what it names; the Get* accessors supply defaults for the rest.
type TuningConfig struct {
	// Cost method and decision params
	Method          *string  `json:"method,omitempty"`           // Division, MeanDifference, DifferenceMean, DifferenceSum, Mean
	Threshold       *float64 `json:"threshold,omitempty"`        // fall trigger threshold; nil selects the method default
	CooldownFrames  *int     `json:"cooldown_frames,omitempty"`  // frames to suppress re-triggers after a fall
	SignedThreshold *bool    `json:"signed_threshold,omitempty"` // compare signed cost instead of |cost|

	// Angle extraction params
	MinConfidence      *float64 `json:"min_confidence,omitempty"`       // landmark visibility cutoff [0,1]
	ZeroAngleEpsilon   *float64 `json:"zero_angle_epsilon,omitempty"`   // previous-angle magnitude treated as zero by Division
	MaxUndefinedAngles *int     `json:"max_undefined_angles,omitempty"` // drop frames with more undefined angles than this

	// Stream params
	SampleEvery     *int `json:"sample_every,omitempty"`     // analyse every Nth source frame
	SmoothingWindow *int `json:"smoothing_window,omitempty"` // rolling-mean window over costs; 0 disables
}

// methodDefaultThresholds carries the tuned per-method trigger thresholds
// used when no explicit threshold is configured.
var methodDefaultThresholds = map[string]float64{
	"DifferenceMean": 58,
	"DifferenceSum":  55,
	"MeanDifference": 5,
	"Mean":           37,
	"Division":       8.5,
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/pose/*/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. This is the only
// point where the engine rejects input: every per-frame anomaly after setup
// degrades to "no decision" instead of failing.
func (c *TuningConfig) Validate() error {
	if c.Method != nil {
		if _, ok := methodDefaultThresholds[*c.Method]; !ok {
			return fmt.Errorf("unknown method %q; use Division, MeanDifference, DifferenceMean, DifferenceSum or Mean", *c.Method)
		}
	}

	if c.Threshold != nil && *c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", *c.Threshold)
	}

	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.CooldownFrames != nil && *c.CooldownFrames < 0 {
		return fmt.Errorf("cooldown_frames must be non-negative, got %d", *c.CooldownFrames)
	}

	if c.SampleEvery != nil && *c.SampleEvery < 1 {
		return fmt.Errorf("sample_every must be >= 1, got %d", *c.SampleEvery)
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 0 {
		return fmt.Errorf("smoothing_window must be non-negative, got %d", *c.SmoothingWindow)
	}

	if c.ZeroAngleEpsilon != nil && *c.ZeroAngleEpsilon < 0 {
		return fmt.Errorf("zero_angle_epsilon must be non-negative, got %f", *c.ZeroAngleEpsilon)
	}

	if c.MaxUndefinedAngles != nil && *c.MaxUndefinedAngles < 0 {
		return fmt.Errorf("max_undefined_angles must be non-negative, got %d", *c.MaxUndefinedAngles)
	}

	return nil
}

// GetMethod returns the configured cost method name or the default.
func (c *TuningConfig) GetMethod() string {
	if c.Method == nil {
		return "DifferenceMean" // default
	}
	return *c.Method
}

// GetThreshold returns the configured threshold, falling back to the tuned
// per-method default when unset.
func (c *TuningConfig) GetThreshold() float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	if t, ok := methodDefaultThresholds[c.GetMethod()]; ok {
		return t
	}
	return 58 // DifferenceMean default
}

// GetCooldownFrames returns the cooldown_frames value or the default.
func (c *TuningConfig) GetCooldownFrames() int {
	if c.CooldownFrames == nil {
		return 5 // default
	}
	return *c.CooldownFrames
}

// GetSignedThreshold returns the signed_threshold value or the default.
func (c *TuningConfig) GetSignedThreshold() bool {
	if c.SignedThreshold == nil {
		return false // default: compare |cost|
	}
	return *c.SignedThreshold
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.3 // default
	}
	return *c.MinConfidence
}

// GetZeroAngleEpsilon returns the zero_angle_epsilon value or the default.
func (c *TuningConfig) GetZeroAngleEpsilon() float64 {
	if c.ZeroAngleEpsilon == nil {
		return 1e-6 // default
	}
	return *c.ZeroAngleEpsilon
}

// GetMaxUndefinedAngles returns the max_undefined_angles value or the default.
func (c *TuningConfig) GetMaxUndefinedAngles() int {
	if c.MaxUndefinedAngles == nil {
		return 5 // default: drop frames with six or more undefined angles
	}
	return *c.MaxUndefinedAngles
}

// GetSampleEvery returns the sample_every value or the default.
func (c *TuningConfig) GetSampleEvery() int {
	if c.SampleEvery == nil {
		return 5 // default: a 30fps source analysed at 6fps
	}
	return *c.SampleEvery
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 6 // default
	}
	return *c.SmoothingWindow
}
