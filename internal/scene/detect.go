package scene

import (
	"fmt"
	"sort"
	"time"

	"github.com/kylev/reelsweep/internal/logging"
	"github.com/rs/zerolog"
)

// Segment is a contiguous time range [Start, End) of the source video.
// A detection result is ordered by Start, contiguous, non-overlapping,
// and unions to exactly [0, duration).
type Segment struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the segment length
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Candidate is a frame boundary whose dissimilarity exceeded a threshold.
type Candidate struct {
	Time  time.Duration
	Score float64
}

// Detector finds scene cuts in a descriptor stream and merges them into
// a covering segment list.
type Detector struct {
	logger        zerolog.Logger
	highThreshold float64
	minSceneLen   time.Duration
}

// DefaultMinSceneLen is the shortest span a cut candidate may close.
// Anything closer to the running segment start is treated as noise.
const DefaultMinSceneLen = 2 * time.Second

// NewDetector creates a detector. A zero minSceneLen selects the default.
func NewDetector(logger zerolog.Logger, highThreshold float64, minSceneLen time.Duration) *Detector {
	if minSceneLen <= 0 {
		minSceneLen = DefaultMinSceneLen
	}
	return &Detector{
		logger:        logging.Component(logger, "detector"),
		highThreshold: highThreshold,
		minSceneLen:   minSceneLen,
	}
}

// Candidates scores every consecutive frame pair and returns the
// boundaries whose dissimilarity exceeds threshold, in input order.
func (d *Detector) Candidates(descriptors []Descriptor, threshold float64) []Candidate {
	var candidates []Candidate
	for i := 1; i < len(descriptors); i++ {
		score := Dissimilarity(&descriptors[i-1], &descriptors[i])
		if score > threshold {
			candidates = append(candidates, Candidate{
				Time:  descriptors[i].Time,
				Score: score,
			})
		}
	}
	return candidates
}

// Detect runs cut detection over the descriptors and merges the
// candidates into a segment list covering [0, total). The candidate list
// used is also returned for audit export.
func (d *Detector) Detect(descriptors []Descriptor, total time.Duration) ([]Segment, []Candidate, error) {
	if len(descriptors) == 0 {
		return nil, nil, fmt.Errorf("no descriptors to detect on")
	}
	if total <= 0 {
		return nil, nil, fmt.Errorf("invalid video duration %v", total)
	}

	candidates := d.Candidates(descriptors, d.highThreshold)
	segments := d.merge(candidates, total)

	d.logger.Info().
		Int("candidates", len(candidates)).
		Int("segments", len(segments)).
		Dur("duration", total).
		Msg("scene detection complete")

	return segments, candidates, nil
}

// merge walks the sorted candidates and closes a segment at every
// candidate at least minSceneLen past the running start. The trailing
// segment up to total is always emitted, however short.
func (d *Detector) merge(candidates []Candidate, total time.Duration) []Segment {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time < sorted[i-1].Time {
			d.logger.Warn().
				Dur("time", sorted[i].Time).
				Dur("previous", sorted[i-1].Time).
				Msg("candidates out of order, sorting before merge")
			break
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	var segments []Segment
	segmentStart := time.Duration(0)

	for _, c := range sorted {
		if c.Time <= segmentStart {
			d.logger.Debug().
				Dur("candidate", c.Time).
				Dur("segment_start", segmentStart).
				Msg("discarding candidate at or before segment start")
			continue
		}
		if c.Time >= total {
			d.logger.Warn().
				Dur("candidate", c.Time).
				Dur("duration", total).
				Msg("discarding candidate past end of video")
			continue
		}

		if c.Time-segmentStart >= d.minSceneLen {
			segments = append(segments, Segment{Start: segmentStart, End: c.Time})
			segmentStart = c.Time
		} else {
			d.logger.Debug().
				Dur("candidate", c.Time).
				Dur("gap", c.Time-segmentStart).
				Msg("discarding candidate as noise, too close to segment start")
		}
	}

	// Tail is never dropped
	segments = append(segments, Segment{Start: segmentStart, End: total})
	return segments
}

// DiagnosticBoundaries runs the identical comparison at a lower threshold
// with no minimum-length merge. The denser list is audit-only and never
// drives materialization.
func (d *Detector) DiagnosticBoundaries(descriptors []Descriptor, lowThreshold float64) []Candidate {
	candidates := d.Candidates(descriptors, lowThreshold)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Time < candidates[j].Time
	})
	return candidates
}

// Validate checks the coverage invariant over segments: ordered,
// contiguous, non-overlapping, union exactly [0, total).
func Validate(segments []Segment, total time.Duration) error {
	if len(segments) == 0 {
		return fmt.Errorf("empty segment list")
	}
	if segments[0].Start != 0 {
		return fmt.Errorf("first segment starts at %v, want 0", segments[0].Start)
	}
	for i, s := range segments {
		if s.Start >= s.End {
			return fmt.Errorf("segment %d has start %v >= end %v", i, s.Start, s.End)
		}
		if i > 0 && segments[i-1].End != s.Start {
			return fmt.Errorf("gap or overlap between segment %d and %d", i-1, i)
		}
	}
	if last := segments[len(segments)-1].End; last != total {
		return fmt.Errorf("last segment ends at %v, want %v", last, total)
	}
	return nil
}
