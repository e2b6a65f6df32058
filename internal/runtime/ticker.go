package runtime

import (
	"context"
	"time"
)

// ticker paces the perception loop. The sleep between ticks is
// skippable so urgent input wakes the loop immediately instead of
// waiting out the interval.
type ticker struct {
	skip chan struct{}
}

func newTicker() *ticker {
	return &ticker{skip: make(chan struct{}, 1)}
}

// SkipNext wakes the current or next sleep. Multiple calls before the
// loop sleeps collapse into one wake.
func (t *ticker) SkipNext() {
	select {
	case t.skip <- struct{}{}:
	default:
	}
}

// Wait sleeps for d unless skipped or cancelled first.
func (t *ticker) Wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-t.skip:
	case <-ctx.Done():
	}
}
