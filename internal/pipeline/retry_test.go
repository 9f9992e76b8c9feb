package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noValidate() error { return nil }

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retry(context.Background(), zerolog.Nop(), 3, "transcode", "out.mp4",
		func() error { calls++; return nil }, noValidate)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversWithinBudget(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient encoder failure")
		}
		return nil
	}

	err := retry(context.Background(), zerolog.Nop(), 3, "transcode", "out.mp4", op, noValidate)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		return fmt.Errorf("persistent failure")
	}

	err := retry(context.Background(), zerolog.Nop(), 3, "transcode", "out.mp4", op, noValidate)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "persistent failure")
}

func TestRetryValidationFailureCountsAsAttempt(t *testing.T) {
	// A zero exit with a missing output is still a failed attempt.
	opCalls, validateCalls := 0, 0
	op := func() error { opCalls++; return nil }
	validate := func() error {
		validateCalls++
		if validateCalls < 2 {
			return fmt.Errorf("output missing or empty")
		}
		return nil
	}

	err := retry(context.Background(), zerolog.Nop(), 3, "transcode", "out.mp4", op, validate)
	require.NoError(t, err)
	assert.Equal(t, 2, opCalls)
	assert.Equal(t, 2, validateCalls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	op := func() error {
		calls++
		cancel()
		return fmt.Errorf("failed")
	}

	err := retry(ctx, zerolog.Nop(), 3, "transcode", "out.mp4", op, noValidate)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryClampsAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), zerolog.Nop(), 0, "transcode", "out.mp4",
		func() error { calls++; return fmt.Errorf("nope") }, noValidate)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
