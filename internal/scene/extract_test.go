package scene

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFrameSource plays back canned frames, reusing one buffer the way
// the real decoder does.
type fakeFrameSource struct {
	frames [][]byte
	err    error
}

func (f *fakeFrameSource) RawFrames(ctx context.Context, input string, width, height int, each func(frame []byte) error) error {
	if f.err != nil {
		return f.err
	}
	buf := make([]byte, width*height*3)
	for _, frame := range f.frames {
		copy(buf, frame)
		if err := each(buf); err != nil {
			return err
		}
	}
	return nil
}

func TestDescriptorsTimestamps(t *testing.T) {
	source := &fakeFrameSource{frames: [][]byte{
		solidFrame(200, 0, 0, 4),
		solidFrame(200, 0, 0, 4),
		solidFrame(0, 200, 0, 4),
	}}
	x := NewExtractor(zerolog.Nop(), source, 2, 2)

	descriptors, err := x.Descriptors(context.Background(), "tape.mov", 2.0)
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	assert.Equal(t, 0, descriptors[0].Index)
	assert.Equal(t, time.Duration(0), descriptors[0].Time)
	assert.Equal(t, 500*time.Millisecond, descriptors[1].Time)
	assert.Equal(t, time.Second, descriptors[2].Time)

	// The reused decode buffer must not alias between descriptors.
	assert.InDelta(t, 0.0, Dissimilarity(&descriptors[0], &descriptors[1]), 1e-9)
	assert.Greater(t, Dissimilarity(&descriptors[1], &descriptors[2]), 0.9)
}

func TestDescriptorsRejectsBadFrameRate(t *testing.T) {
	x := NewExtractor(zerolog.Nop(), &fakeFrameSource{}, 2, 2)

	_, err := x.Descriptors(context.Background(), "tape.mov", 0)
	assert.Error(t, err)
	_, err = x.Descriptors(context.Background(), "tape.mov", -29.97)
	assert.Error(t, err)
}

func TestDescriptorsEmptyDecode(t *testing.T) {
	x := NewExtractor(zerolog.Nop(), &fakeFrameSource{}, 2, 2)

	_, err := x.Descriptors(context.Background(), "tape.mov", 29.97)
	assert.Error(t, err)
}

func TestDescriptorsDecodeFailure(t *testing.T) {
	source := &fakeFrameSource{err: fmt.Errorf("decoder crashed")}
	x := NewExtractor(zerolog.Nop(), source, 2, 2)

	_, err := x.Descriptors(context.Background(), "tape.mov", 29.97)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder crashed")
}
