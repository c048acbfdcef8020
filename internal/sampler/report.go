package sampler

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// TimestampLayout is ISO8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// reporter writes the human-readable fetch lines shared by all pollers of
// a run. Level 1 prints successful fetches, level 2 adds failures.
type reporter struct {
	mu    sync.Mutex
	w     io.Writer
	level int
}

func newReporter(w io.Writer, level int) *reporter {
	if w == nil || level <= 0 {
		return nil
	}
	return &reporter{w: w, level: level}
}

func (r *reporter) fetch(ts time.Time, exchange, symbol, summary string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s %s %s\n", ts.UTC().Format(TimestampLayout), exchange, symbol, summary)
}

func (r *reporter) failure(ts time.Time, exchange, symbol string, err error) {
	if r == nil || r.level < 2 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s %s error: %v\n", ts.UTC().Format(TimestampLayout), exchange, symbol, err)
}
