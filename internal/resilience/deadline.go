package resilience

import (
	"context"
	"time"
)

// CallWithDeadline runs fn with a hard time budget. The collaborator call is
// raced against the deadline; on expiry the result is ErrDeadline and the
// call's eventual outcome is discarded. fn receives a context that is
// cancelled at the deadline so cooperative callees can bail early.
func CallWithDeadline[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		val, err := fn(callCtx)
		done <- outcome{val, err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.val, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrDeadline
	}
}
