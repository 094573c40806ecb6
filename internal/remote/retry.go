package remote

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryInitialInterval = 250 * time.Millisecond
	retryMultiplier      = 4.0
	retryMaxAttempts     = 3
)

// Retry runs op with the control-plane backoff policy: 3 retries after the
// first attempt, waiting 250 ms, 1 s, 4 s. An AuthError aborts immediately;
// everything else is treated as transient. Voice frames never go through
// here, losses on the media path are absorbed by the jitter buffers.
func Retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.Multiplier = retryMultiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = retryInitialInterval * 16

	wrapped := func() error {
		err := op()
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, retryMaxAttempts), ctx))
}

// RetryLogin is Retry demoted for login: after exhausting attempts, any
// remaining transient failure surfaces as an AuthError so the session
// machine releases the credential instead of limping along.
func RetryLogin(ctx context.Context, op func() error) error {
	err := Retry(ctx, op)
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &AuthError{Err: err}
}
