package tabular

import (
	"context"
	"errors"
	"time"
)

// Retry runs fn up to attempts times, doubling delay between tries, as
// long as fn keeps failing with a *TransientError. Validation, auth and
// conflict errors are terminal for the attempt and returned immediately.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		var te *TransientError
		if !errors.As(err, &te) {
			return err
		}
		last = err
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return last
}
