package console

import (
	"context"
	"runtime"
	"time"
)

// Reader is anything with the Console read contract: never blocks, 0 means
// nothing yet.
type Reader interface {
	Read(p []byte) (int, error)
}

// WaitRead polls r until it yields input, fails or ctx is done. Between empty
// reads it sleeps for interval, or yields the processor when interval is 0.
func WaitRead(ctx context.Context, r Reader, p []byte, interval time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		n, err := r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}

		if interval <= 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			runtime.Gosched()
			continue
		}

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}
