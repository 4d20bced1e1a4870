package browser

import (
	"context"
	"fmt"
	"time"

	"shopcrawl/internal/collector"
)

// defaultPollInterval is how often WaitUntil re-checks its condition.
const defaultPollInterval = 100 * time.Millisecond

// pollUntil checks cond until it holds, the timeout elapses or ctx is done.
func pollUntil(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) bool) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond(waitCtx) {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w after %s", collector.ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}
