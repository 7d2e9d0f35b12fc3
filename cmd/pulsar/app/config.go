package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultClipSigma        = 7.0
	defaultCurvatureSamples = 128
	defaultParabolaPoints   = 128
	defaultWidthOffsets     = 64
	defaultParabolaSigmaPx  = 1.0
	defaultSecondaryCrop    = 1.0
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Database string `yaml:"database"`
}

// AnalysisConfig represents spectrum preparation and arc search settings
type AnalysisConfig struct {
	ClipSigma          float64  `yaml:"clipSigma"`
	NormalizeFrequency bool     `yaml:"normalizeFrequency"`
	NormalizeTime      *bool    `yaml:"normalizeTime"`
	FringeScale        *float64 `yaml:"fringeScale"`
	DelayScale         *float64 `yaml:"delayScale"`
	FullDelayAxis      bool     `yaml:"fullDelayAxis"`
	Workers            int      `yaml:"workers"`
	SigmaY             float64  `yaml:"sigmaY"`
	SigmaX             float64  `yaml:"sigmaX"`

	Curvature CurvatureConfig `yaml:"curvature"`
	Parabola  ParabolaConfig  `yaml:"parabola"`
	Width     WidthConfig     `yaml:"width"`
}

// CurvatureConfig bounds the curvature sweep.
type CurvatureConfig struct {
	EtaMin  float64 `yaml:"etaMin"`
	EtaMax  float64 `yaml:"etaMax"`
	Samples int     `yaml:"samples"`
}

// ParabolaConfig controls the power profile along the best-fit arc.
type ParabolaConfig struct {
	Points  int     `yaml:"points"`
	SigmaPx float64 `yaml:"sigmaPx"`
}

// WidthConfig controls the arc thickness scan.
type WidthConfig struct {
	MaxOffset float64 `yaml:"maxOffset"`
	Offsets   int     `yaml:"offsets"`
}

// TimeNormalization reports whether per-subintegration normalization is
// enabled. It defaults to on when the configuration leaves it unset.
func (c AnalysisConfig) TimeNormalization() bool {
	if c.NormalizeTime == nil {
		return true
	}
	return *c.NormalizeTime
}

// FringeCrop returns the fringe frequency crop scale, keeping the full
// axis when the configuration leaves it unset.
func (c AnalysisConfig) FringeCrop() float64 {
	if c.FringeScale == nil {
		return defaultSecondaryCrop
	}
	return *c.FringeScale
}

// DelayCrop returns the delay crop scale, keeping the full axis when
// the configuration leaves it unset.
func (c AnalysisConfig) DelayCrop() float64 {
	if c.DelayScale == nil {
		return defaultSecondaryCrop
	}
	return *c.DelayScale
}

// LoadConfig reads and validates the YAML configuration at path, filling
// unset analysis knobs with their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Storage.Database == "" {
		return nil, fmt.Errorf("storage.database is required")
	}

	a := &config.Analysis
	if a.ClipSigma == 0 {
		a.ClipSigma = defaultClipSigma
	}
	if a.Curvature.Samples == 0 {
		a.Curvature.Samples = defaultCurvatureSamples
	}
	if a.Parabola.Points == 0 {
		a.Parabola.Points = defaultParabolaPoints
	}
	if a.Parabola.SigmaPx == 0 {
		a.Parabola.SigmaPx = defaultParabolaSigmaPx
	}
	if a.Width.Offsets == 0 {
		a.Width.Offsets = defaultWidthOffsets
	}

	switch {
	case a.ClipSigma < 0:
		return nil, fmt.Errorf("analysis.clipSigma must be positive, got %g", a.ClipSigma)
	case a.FringeScale != nil && (*a.FringeScale <= 0 || *a.FringeScale > 1):
		return nil, fmt.Errorf("analysis.fringeScale must be within (0, 1], got %g", *a.FringeScale)
	case a.DelayScale != nil && (*a.DelayScale <= 0 || *a.DelayScale > 1):
		return nil, fmt.Errorf("analysis.delayScale must be within (0, 1], got %g", *a.DelayScale)
	case a.Workers < 0:
		return nil, fmt.Errorf("analysis.workers must not be negative, got %d", a.Workers)
	}

	return &config, nil
}
