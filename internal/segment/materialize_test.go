package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kylev/reelsweep/internal/scene"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractCall struct {
	input    string
	start    time.Duration
	duration time.Duration
	output   string
}

type fakeExtractor struct {
	calls   []extractCall
	failOn  string
	writeTo bool
}

func (f *fakeExtractor) ExtractRange(ctx context.Context, input string, start, duration time.Duration, output string) error {
	f.calls = append(f.calls, extractCall{input, start, duration, output})
	if f.failOn != "" && filepath.Base(output) == f.failOn {
		return fmt.Errorf("extraction blew up")
	}
	if f.writeTo {
		return os.WriteFile(output, []byte("clip"), 0644)
	}
	return nil
}

func TestMaterializeNamesClipsInOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	fake := &fakeExtractor{writeTo: true}
	m := New(zerolog.Nop(), fake)

	segments := []scene.Segment{
		{Start: 0, End: 3 * time.Second},
		{Start: 3 * time.Second, End: 7 * time.Second},
		{Start: 7 * time.Second, End: 10 * time.Second},
	}

	outputs, err := m.Materialize(context.Background(), "tape.mov", segments, dir, "clip_01_scene")
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "clip_01_scene_01.mov"),
		filepath.Join(dir, "clip_01_scene_02.mov"),
		filepath.Join(dir, "clip_01_scene_03.mov"),
	}
	assert.Equal(t, want, outputs)
	for _, p := range want {
		assert.FileExists(t, p)
	}

	require.Len(t, fake.calls, 3)
	assert.Equal(t, 3*time.Second, fake.calls[1].start)
	assert.Equal(t, 4*time.Second, fake.calls[1].duration)
	assert.Equal(t, "tape.mov", fake.calls[1].input)
}

func TestMaterializeSkipsTinySegments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	fake := &fakeExtractor{}
	m := New(zerolog.Nop(), fake)

	segments := []scene.Segment{
		{Start: 0, End: 5 * time.Second},
		{Start: 5 * time.Second, End: 5*time.Second + 100*time.Millisecond},
		{Start: 5*time.Second + 100*time.Millisecond, End: 10 * time.Second},
	}

	outputs, err := m.Materialize(context.Background(), "tape.mov", segments, dir, "clip_01_scene")
	require.NoError(t, err)

	// Numbering stays contiguous across the skipped segment.
	require.Len(t, outputs, 2)
	assert.Equal(t, filepath.Join(dir, "clip_01_scene_02.mov"), outputs[1])
	require.Len(t, fake.calls, 2)
	assert.Equal(t, 5*time.Second+100*time.Millisecond, fake.calls[1].start)
}

func TestMaterializeAbortsOnFirstFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	fake := &fakeExtractor{failOn: "clip_01_scene_02.mov"}
	m := New(zerolog.Nop(), fake)

	segments := []scene.Segment{
		{Start: 0, End: 3 * time.Second},
		{Start: 3 * time.Second, End: 7 * time.Second},
		{Start: 7 * time.Second, End: 10 * time.Second},
	}

	outputs, err := m.Materialize(context.Background(), "tape.mov", segments, dir, "clip_01_scene")
	require.Error(t, err)
	assert.Nil(t, outputs)
	// The third segment is never attempted.
	assert.Len(t, fake.calls, 2)
}
