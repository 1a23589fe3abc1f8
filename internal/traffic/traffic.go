package traffic

import (
	"sync"
	"time"
)

// Tracker keeps a sliding window of upstream call outcomes. The health
// endpoint reads its error rate to report degraded.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	now       func() time.Time
	successes []time.Time
	failures  []time.Time
}

// NewTracker returns a Tracker over the given window. now defaults to time.Now.
func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{window: window, now: now}
}

// RecordSuccess records a successful upstream fetch.
func (t *Tracker) RecordSuccess() {
	t.record(&t.successes)
}

// RecordFailure records a failed upstream fetch (5xx, timeout, malformed body, open circuit).
func (t *Tracker) RecordFailure() {
	t.record(&t.failures)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (failures, total) within the window.
func (t *Tracker) ErrorRate() (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return len(t.failures), len(t.failures) + len(t.successes)
}

// Degraded reports whether at least minSamples outcomes were seen in the
// window and the failure ratio is at or above threshold.
func (t *Tracker) Degraded(threshold float64, minSamples int) bool {
	failures, total := t.ErrorRate()
	if total == 0 || total < minSamples {
		return false
	}
	return float64(failures)/float64(total) >= threshold
}

// pruneLocked drops timestamps older than the window. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successes)
	prune(&t.failures)
}
