package enginecli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// TimeoutError reports a poll that did not succeed before its deadline.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s not ready after %v", e.What, e.Timeout)
	}
	return fmt.Sprintf("%s not ready after %v: %v", e.What, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Poll calls check every interval until it returns nil or timeout has
// elapsed. Elapsed time is measured on the monotonic clock; a check is never
// interrupted, so the bound is checked after each attempt and the last
// attempt runs at or after the timeout. notify, when not nil, sees every
// failed attempt.
func Poll(ctx context.Context, what string, timeout, interval time.Duration, check func() error, notify func(error)) error {
	if timeout <= 0 {
		return &TimeoutError{What: what, Timeout: timeout}
	}

	start := time.Now()
	timedOut := false
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := check()
		if err == nil {
			return struct{}{}, nil
		}
		if notify != nil {
			notify(err)
		}
		if time.Since(start) >= timeout {
			timedOut = true
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !timedOut {
		return err
	}
	return &TimeoutError{What: what, Timeout: timeout, Err: err}
}

// WaitForHTTP polls url with plain GET requests until any HTTP response
// arrives or timeout elapses. Connection failures are expected while the
// engine boots and are ignored.
func WaitForHTTP(ctx context.Context, url string, timeout, interval time.Duration) error {
	client := &http.Client{Timeout: timeout}
	return Poll(ctx, url, timeout, interval, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	}, nil)
}
