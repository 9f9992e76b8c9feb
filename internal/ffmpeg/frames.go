package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// RawFrames decodes the input to width x height rgb24 raw video and calls
// each once per frame with the packed pixel data. The buffer is reused
// between calls; each must copy anything it keeps.
//
// Any decode failure is fatal: the error is returned and no partial
// result contract is offered to the caller.
func (e *Executor) RawFrames(ctx context.Context, input string, width, height int, each func(frame []byte) error) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid analysis frame size %dx%d", width, height)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-",
	}

	e.logger.Debug().
		Str("input", input).
		Int("width", width).
		Int("height", height).
		Msg("decoding analysis frames")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	frameSize := width * height * 3
	buf := make([]byte, frameSize)
	frames := 0

	for {
		_, err := io.ReadFull(stdout, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// Trailing partial frame, decoder stopped mid-frame
			e.logger.Warn().Int("frame", frames).Msg("truncated trailing frame from decoder")
			break
		}
		if err != nil {
			_ = cmd.Wait()
			return fmt.Errorf("failed to read frame %d: %w", frames, err)
		}

		if err := each(buf); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
		frames++
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("frame decode failed after %d frames: %w", frames, err)
	}
	if frames == 0 {
		return fmt.Errorf("no frames decoded from %s", input)
	}

	e.logger.Debug().Int("frames", frames).Msg("analysis decode complete")
	return nil
}
