package ffmpeg

import (
	"context"
	"fmt"
)

// TranscodeOptions configures a delivery transcode
type TranscodeOptions struct {
	Input        string
	Output       string
	Geometry     Geometry
	CRF          int
	Preset       string
	AudioBitrate string
	ProgressFunc ProgressFunc
}

// Transcode produces the playback-optimized delivery render: scaled to
// the geometry preset, H.265 in an hvc1-tagged container, AAC audio.
func (e *Executor) Transcode(ctx context.Context, opts TranscodeOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	width, height := opts.Geometry.Resolution()

	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	audioBitrate := opts.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = DefaultAudioBitrate
	}

	e.logger.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Str("geometry", string(opts.Geometry)).
		Int("width", width).
		Int("height", height).
		Msg("starting delivery transcode")

	args := []string{
		"-i", opts.Input,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-c:v", DeliveryVideoCodec,
		"-pix_fmt", DeliveryPixelFormat,
		"-tag:v", DeliveryCodecTag,
		"-crf", fmt.Sprintf("%d", crf),
		"-preset", preset,
		"-c:a", DeliveryAudioCodec,
		"-b:a", audioBitrate,
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("delivery transcode")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("delivery transcode failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("delivery transcode complete")
	return nil
}
