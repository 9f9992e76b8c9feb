package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type contextKey struct{}

var configKey = contextKey{}

// Config holds all application configuration
type Config struct {
	// ScratchRoot is where per-input working directories are created.
	// All heavy processing happens under it; originals are never touched.
	ScratchRoot string `yaml:"scratch_root" env:"REELSWEEP_SCRATCH_ROOT"`

	// InputExtension selects which files directory mode picks up.
	InputExtension string `yaml:"input_extension" env:"REELSWEEP_INPUT_EXT"`

	Detect DetectConfig `yaml:"detect"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Retry  RetryConfig  `yaml:"retry"`
}

type DetectConfig struct {
	// HighThreshold drives real segmentation; LowThreshold only feeds the
	// denser diagnostic boundary list.
	HighThreshold float64       `yaml:"high_threshold" env:"REELSWEEP_HIGH_THRESHOLD"`
	LowThreshold  float64       `yaml:"low_threshold" env:"REELSWEEP_LOW_THRESHOLD"`
	MinSceneLen   time.Duration `yaml:"min_scene_len" env:"REELSWEEP_MIN_SCENE_LEN"`

	// DefaultFrameRate is assumed when the probe cannot determine FPS.
	DefaultFrameRate float64 `yaml:"default_frame_rate"`

	// Analysis frames are decoded at this size; histograms don't need
	// full resolution.
	AnalysisWidth  int `yaml:"analysis_width"`
	AnalysisHeight int `yaml:"analysis_height"`
}

type FFmpegConfig struct {
	Threads      int    `yaml:"threads" env:"REELSWEEP_FFMPEG_THREADS"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

type RetryConfig struct {
	// TranscodeAttempts bounds delivery-transcode retries per unit.
	// Lossless extraction is never retried; a failed batch is rerun whole.
	TranscodeAttempts int `yaml:"transcode_attempts" env:"REELSWEEP_TRANSCODE_ATTEMPTS"`
}

// Load reads configuration from file (or defaults), then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return &Config{
		ScratchRoot:    filepath.Join(home, "reelsweep"),
		InputExtension: ".mov",
		Detect: DetectConfig{
			HighThreshold:    0.35,
			LowThreshold:     0.30,
			MinSceneLen:      2 * time.Second,
			DefaultFrameRate: 29.97,
			AnalysisWidth:    160,
			AnalysisHeight:   120,
		},
		FFmpeg: FFmpegConfig{
			Threads:      0,
			Preset:       "slow",
			CRF:          23,
			AudioBitrate: "192k",
		},
		Retry: RetryConfig{
			TranscodeAttempts: 3,
		},
	}
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		"./reelsweep.yaml",
		"./reelsweep.yml",
		filepath.Join(home, ".reelsweep", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
