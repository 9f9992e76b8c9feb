package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// retry is the one bounded-retry-with-validation combinator used around
// expensive external encodes. An attempt counts as successful only when
// op returns nil and validate confirms the result (typically: output
// exists with non-zero size). Cheap deterministic operations like
// lossless extraction do not come through here.
func retry(ctx context.Context, logger zerolog.Logger, attempts int, operation, target string, op func() error, validate func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			err = validate()
		}
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("operation", operation).
					Str("target", target).
					Int("attempt", attempt).
					Msg("succeeded after retry")
			}
			return nil
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("target", target).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("attempt failed")
	}

	return fmt.Errorf("%s failed for %s after %d attempts: %w", operation, target, attempts, lastErr)
}
