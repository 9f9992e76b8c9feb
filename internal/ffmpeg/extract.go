package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/kylev/reelsweep/pkg/util"
)

// ExtractRange copies exactly [start, start+duration) of input to output
// using lossless stream copy. Extraction is cheap and deterministic, so
// failures are not retried here.
func (e *Executor) ExtractRange(ctx context.Context, input string, start, duration time.Duration, output string) error {
	if duration <= 0 {
		return fmt.Errorf("invalid range duration: end must be after start")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Dur("start", start).
		Dur("duration", duration).
		Msg("extracting range")

	args := []string{
		"-ss", util.FormatDuration(start),
		"-i", input,
		"-t", util.FormatDuration(duration),
		"-c", "copy",
		output,
	}

	runOpts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("range extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("range extraction failed: %w", err)
	}

	return nil
}
