package segment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kylev/reelsweep/internal/logging"
	"github.com/kylev/reelsweep/internal/scene"
	"github.com/kylev/reelsweep/pkg/util"
	"github.com/rs/zerolog"
)

// RangeExtractor performs lossless extraction of one time range.
type RangeExtractor interface {
	ExtractRange(ctx context.Context, input string, start, duration time.Duration, output string) error
}

// MinClipLen filters out ranges too short to survive a stream-copy cut.
const MinClipLen = 250 * time.Millisecond

// Materializer writes one file per segment via lossless stream copy.
type Materializer struct {
	logger    zerolog.Logger
	extractor RangeExtractor
}

// New creates a materializer
func New(logger zerolog.Logger, extractor RangeExtractor) *Materializer {
	return &Materializer{
		logger:    logging.Component(logger, "materializer"),
		extractor: extractor,
	}
}

// Materialize extracts every segment of input into outputDir as
// {prefix}_01.mov, {prefix}_02.mov, ... and returns the ordered paths.
// The first failed extraction aborts the remaining batch; extraction is
// cheap and deterministic, so the caller reruns a failed batch wholesale
// instead of retrying here.
func (m *Materializer) Materialize(ctx context.Context, input string, segments []scene.Segment, outputDir, prefix string) ([]string, error) {
	if err := util.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create clips dir: %w", err)
	}

	m.logger.Info().
		Str("input", input).
		Int("segments", len(segments)).
		Str("output_dir", outputDir).
		Msg("materializing segments")

	var outputs []string
	n := 0
	for _, s := range segments {
		if s.Duration() < MinClipLen {
			m.logger.Debug().
				Dur("start", s.Start).
				Dur("duration", s.Duration()).
				Msg("skipping segment below minimum clip length")
			continue
		}

		n++
		output := filepath.Join(outputDir, fmt.Sprintf("%s_%02d.mov", prefix, n))
		if err := m.extractor.ExtractRange(ctx, input, s.Start, s.Duration(), output); err != nil {
			return nil, fmt.Errorf("failed to extract segment %d (%v-%v): %w", n, s.Start, s.End, err)
		}
		outputs = append(outputs, output)
	}

	m.logger.Info().Int("clips", len(outputs)).Msg("materialization complete")
	return outputs, nil
}
