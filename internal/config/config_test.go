package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".mov", cfg.InputExtension)
	assert.Equal(t, 0.35, cfg.Detect.HighThreshold)
	assert.Equal(t, 0.30, cfg.Detect.LowThreshold)
	assert.Equal(t, 2*time.Second, cfg.Detect.MinSceneLen)
	assert.Equal(t, 29.97, cfg.Detect.DefaultFrameRate)
	assert.Equal(t, "slow", cfg.FFmpeg.Preset)
	assert.Equal(t, 23, cfg.FFmpeg.CRF)
	assert.Equal(t, "192k", cfg.FFmpeg.AudioBitrate)
	assert.Equal(t, 3, cfg.Retry.TranscodeAttempts)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsweep.yaml")
	data := []byte(`
scratch_root: /scratch/video
detect:
  high_threshold: 0.5
  min_scene_len: 3s
ffmpeg:
  preset: medium
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/scratch/video", cfg.ScratchRoot)
	assert.Equal(t, 0.5, cfg.Detect.HighThreshold)
	assert.Equal(t, 3*time.Second, cfg.Detect.MinSceneLen)
	assert.Equal(t, "medium", cfg.FFmpeg.Preset)

	// Unset keys keep their defaults.
	assert.Equal(t, 0.30, cfg.Detect.LowThreshold)
	assert.Equal(t, 23, cfg.FFmpeg.CRF)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detect:\n  high_threshold: 0.5\n"), 0644))

	t.Setenv("REELSWEEP_HIGH_THRESHOLD", "0.6")
	t.Setenv("REELSWEEP_TRANSCODE_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Detect.HighThreshold)
	assert.Equal(t, 5, cfg.Retry.TranscodeAttempts)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsweep.yaml")

	cfg := defaultConfig()
	cfg.Detect.HighThreshold = 0.42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.42, loaded.Detect.HighThreshold)
}
