package ratelimit

import (
	"sync"
	"time"
)

// window is the sliding log for a single key.
//
// It records the timestamp of every admission still inside the trailing
// window. The log never holds more admissions than the largest limit the
// key has been checked with.
type window struct {
	mu sync.Mutex

	stamps []time.Time // ascending
	span   time.Duration
	peak   int
	last   time.Time

	// evicted is set under mu when a sweep removes the entry from its shard.
	// Callers that observe it must look the key up again.
	evicted bool
}

// pruneLocked drops admissions at or before now-span.
// Caller must hold mu.
func (w *window) pruneLocked(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	if i == len(w.stamps) {
		w.stamps = w.stamps[:0]
		return
	}
	n := copy(w.stamps, w.stamps[i:])
	w.stamps = w.stamps[:n]
}

// admitLocked applies one admission attempt at now.
// Caller must hold mu.
func (w *window) admitLocked(now time.Time, limit int, span time.Duration) *Decision {
	w.pruneLocked(now, span)
	w.span = span
	w.last = now
	if limit > w.peak {
		w.peak = limit
	}

	d := &Decision{Limit: limit}

	if len(w.stamps) < limit {
		w.stamps = append(w.stamps, now)
		d.Allowed = true
		d.Remaining = limit - len(w.stamps)
		d.Reset = w.stamps[0].Add(span)
		return d
	}

	oldest := w.stamps[0]
	d.Reset = oldest.Add(span)
	d.RetryAfter = d.Reset.Sub(now)
	return d
}

// staleLocked reports whether every admission has left the window and the
// key has been idle for at least one window length.
// Caller must hold mu.
func (w *window) staleLocked(now time.Time) bool {
	return now.Sub(w.last) >= w.span
}
