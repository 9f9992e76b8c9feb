package scene

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFPS = 2.0

// solidDescriptors builds one descriptor per color at testFPS, so frame
// i sits at i*500ms. A color change between consecutive frames scores
// well above any realistic cut threshold.
func solidDescriptors(colors [][3]byte) []Descriptor {
	descriptors := make([]Descriptor, len(colors))
	for i, c := range colors {
		t := time.Duration(float64(i) / testFPS * float64(time.Second))
		descriptors[i] = NewDescriptor(i, t, solidFrame(c[0], c[1], c[2], 16))
	}
	return descriptors
}

// colorRun appends n frames of one color.
func colorRun(colors [][3]byte, c [3]byte, n int) [][3]byte {
	for i := 0; i < n; i++ {
		colors = append(colors, c)
	}
	return colors
}

var (
	red   = [3]byte{200, 0, 0}
	green = [3]byte{0, 200, 0}
	blue  = [3]byte{0, 0, 200}
)

func newTestDetector() *Detector {
	return NewDetector(zerolog.Nop(), 0.35, 2*time.Second)
}

func TestDetectSingleSegmentWhenCutsTooEarly(t *testing.T) {
	// Cuts at 1.0s and 1.5s, both closer to the start than the minimum
	// scene length, so neither closes a segment.
	var colors [][3]byte
	colors = colorRun(colors, red, 2)
	colors = colorRun(colors, green, 1)
	colors = colorRun(colors, blue, 17)
	descriptors := solidDescriptors(colors)

	segments, candidates, err := newTestDetector().Detect(descriptors, 10*time.Second)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, time.Second, candidates[0].Time)
	assert.Equal(t, 1500*time.Millisecond, candidates[1].Time)

	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Start: 0, End: 10 * time.Second}, segments[0])
}

func TestDetectThreeSegments(t *testing.T) {
	// Cuts at 3.0s and 7.0s, both past the minimum scene length.
	var colors [][3]byte
	colors = colorRun(colors, red, 6)
	colors = colorRun(colors, green, 8)
	colors = colorRun(colors, blue, 6)
	descriptors := solidDescriptors(colors)

	segments, candidates, err := newTestDetector().Detect(descriptors, 10*time.Second)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	want := []Segment{
		{Start: 0, End: 3 * time.Second},
		{Start: 3 * time.Second, End: 7 * time.Second},
		{Start: 7 * time.Second, End: 10 * time.Second},
	}
	assert.Equal(t, want, segments)
	require.NoError(t, Validate(segments, 10*time.Second))
}

func TestDetectKeepsShortTrailingSegment(t *testing.T) {
	// A cut at 9.0s leaves a 1s tail, shorter than the minimum scene
	// length. The tail is still emitted so coverage holds.
	var colors [][3]byte
	colors = colorRun(colors, red, 18)
	colors = colorRun(colors, green, 2)
	descriptors := solidDescriptors(colors)

	segments, _, err := newTestDetector().Detect(descriptors, 10*time.Second)
	require.NoError(t, err)

	want := []Segment{
		{Start: 0, End: 9 * time.Second},
		{Start: 9 * time.Second, End: 10 * time.Second},
	}
	assert.Equal(t, want, segments)
	require.NoError(t, Validate(segments, 10*time.Second))
}

func TestDetectNoCutsYieldsWholeVideo(t *testing.T) {
	descriptors := solidDescriptors(colorRun(nil, red, 20))

	segments, candidates, err := newTestDetector().Detect(descriptors, 10*time.Second)
	require.NoError(t, err)

	assert.Empty(t, candidates)
	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Start: 0, End: 10 * time.Second}, segments[0])
}

func TestDetectDeterministic(t *testing.T) {
	var colors [][3]byte
	colors = colorRun(colors, red, 6)
	colors = colorRun(colors, green, 14)
	descriptors := solidDescriptors(colors)

	d := newTestDetector()
	first, _, err := d.Detect(descriptors, 10*time.Second)
	require.NoError(t, err)
	second, _, err := d.Detect(descriptors, 10*time.Second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetectRejectsEmptyInput(t *testing.T) {
	d := newTestDetector()

	_, _, err := d.Detect(nil, 10*time.Second)
	assert.Error(t, err)

	_, _, err = d.Detect(solidDescriptors(colorRun(nil, red, 4)), 0)
	assert.Error(t, err)
}

func TestMergeSortsUnsortedCandidates(t *testing.T) {
	d := newTestDetector()
	candidates := []Candidate{
		{Time: 7 * time.Second, Score: 0.8},
		{Time: 3 * time.Second, Score: 0.9},
	}

	segments := d.merge(candidates, 10*time.Second)

	want := []Segment{
		{Start: 0, End: 3 * time.Second},
		{Start: 3 * time.Second, End: 7 * time.Second},
		{Start: 7 * time.Second, End: 10 * time.Second},
	}
	assert.Equal(t, want, segments)
}

func TestMergeDiscardsOutOfRangeCandidates(t *testing.T) {
	d := newTestDetector()
	candidates := []Candidate{
		{Time: 0, Score: 0.9},
		{Time: 12 * time.Second, Score: 0.9},
	}

	segments := d.merge(candidates, 10*time.Second)

	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Start: 0, End: 10 * time.Second}, segments[0])
}

func TestDiagnosticBoundariesSkipsMerge(t *testing.T) {
	// The same early cuts the real detection merges away stay visible in
	// the diagnostic list.
	var colors [][3]byte
	colors = colorRun(colors, red, 2)
	colors = colorRun(colors, green, 1)
	colors = colorRun(colors, blue, 17)
	descriptors := solidDescriptors(colors)

	d := newTestDetector()
	dense := d.DiagnosticBoundaries(descriptors, 0.30)

	require.Len(t, dense, 2)
	assert.Equal(t, time.Second, dense[0].Time)
	assert.Equal(t, 1500*time.Millisecond, dense[1].Time)
	assert.Greater(t, dense[0].Score, 0.30)
}

func TestValidate(t *testing.T) {
	total := 10 * time.Second
	good := []Segment{
		{Start: 0, End: 4 * time.Second},
		{Start: 4 * time.Second, End: total},
	}
	assert.NoError(t, Validate(good, total))

	assert.Error(t, Validate(nil, total))
	assert.Error(t, Validate([]Segment{{Start: time.Second, End: total}}, total))
	assert.Error(t, Validate([]Segment{
		{Start: 0, End: 3 * time.Second},
		{Start: 4 * time.Second, End: total},
	}, total))
	assert.Error(t, Validate([]Segment{{Start: 0, End: 9 * time.Second}}, total))
	assert.Error(t, Validate([]Segment{{Start: 0, End: 0}}, total))
}
