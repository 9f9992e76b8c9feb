package scene

import (
	"context"
	"fmt"
	"time"

	"github.com/kylev/reelsweep/internal/logging"
	"github.com/rs/zerolog"
)

// FrameSource decodes a video into raw rgb24 frames. The engine depends
// only on this contract, not on any particular decoder.
type FrameSource interface {
	RawFrames(ctx context.Context, input string, width, height int, each func(frame []byte) error) error
}

// Extractor turns a decoded frame stream into per-frame descriptors.
type Extractor struct {
	logger zerolog.Logger
	source FrameSource
	width  int
	height int
}

// NewExtractor creates an extractor decoding analysis frames at the given size.
func NewExtractor(logger zerolog.Logger, source FrameSource, width, height int) *Extractor {
	return &Extractor{
		logger: logging.Component(logger, "extractor"),
		source: source,
		width:  width,
		height: height,
	}
}

// Descriptors decodes input and computes one descriptor per frame.
// Frames are timestamped as index/fps; the caller supplies a default
// frame rate when probing could not determine one. A decode failure
// aborts the whole run with no partial result.
func (x *Extractor) Descriptors(ctx context.Context, input string, fps float64) ([]Descriptor, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %f", fps)
	}

	x.logger.Info().
		Str("input", input).
		Float64("fps", fps).
		Msg("extracting frame descriptors")

	var descriptors []Descriptor
	lastTime := time.Duration(-1)

	err := x.source.RawFrames(ctx, input, x.width, x.height, func(frame []byte) error {
		index := len(descriptors)
		t := time.Duration(float64(index) / fps * float64(time.Second))

		// Decode anomalies can produce non-monotonic timestamps. They are
		// logged here and tolerated; the detector sorts before use.
		if t < lastTime {
			x.logger.Warn().
				Int("frame", index).
				Dur("time", t).
				Dur("last_time", lastTime).
				Msg("non-monotonic frame timestamp")
		}
		lastTime = t

		descriptors = append(descriptors, NewDescriptor(index, t, frame))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("frame signal extraction failed: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no frames decoded from %s", input)
	}

	x.logger.Info().Int("frames", len(descriptors)).Msg("frame descriptors extracted")
	return descriptors, nil
}
