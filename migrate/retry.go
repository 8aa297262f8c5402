// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package migrate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/shuttle/core"
)

// retryPolicy decides how a failed sink call is repeated.
type retryPolicy struct {
	attempts  int           // total calls, the first included
	delay     time.Duration // wait before the first retry, doubled after each
	retryable func(error) bool
	logger    *slog.Logger
}

// maxBackoffShift caps the doubling of the retry delay.
const maxBackoffShift = 10

// newRetryPolicy retries transport errors MaxRetries times. A sink that panics
// or returns no result broke its contract, and repeating the call will not help.
func newRetryPolicy(config *Config, logger *slog.Logger) retryPolicy {
	return retryPolicy{
		attempts: config.MaxRetries + 1,
		delay:    config.RetryDelay,
		retryable: func(err error) bool {
			return core.IsTransportError(err) &&
				!errors.Is(err, ErrSinkPanicked) &&
				!errors.Is(err, ErrNilResult)
		},
		logger: logger,
	}
}

// backoff returns the wait before the given retry (1-based).
func (p retryPolicy) backoff(retry int) time.Duration {
	return p.delay << min(retry-1, maxBackoffShift)
}

// do calls op until it succeeds, fails with an error retryable rejects, or
// runs out of attempts, and returns op's last error.
//
// The first call always happens. Once ctx is done no further call is made and
// the result joins ctx.Err() with op's last error.
func (p retryPolicy) do(ctx context.Context, op func() error) error {
	if p.attempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = op()
		switch {
		case lastErr == nil:
			if attempt > 1 {
				p.logger.Debug("sink call succeeded after retry", "attempt", attempt)
			}
			return nil
		case attempt == p.attempts:
			return lastErr
		case p.retryable != nil && !p.retryable(lastErr):
			return lastErr
		}

		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		wait := p.backoff(attempt)
		p.logger.Debug("sink call failed, retrying", "attempt", attempt, "maxAttempts", p.attempts, "wait", wait, "err", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}
