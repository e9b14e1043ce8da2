// Package jitter delays outbound pushes inversely proportional to recent
// traffic frequency, so low-traffic deployments do not leak precise event
// timing while busy ones pay a negligible cost.
package jitter

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	// historyCapacity bounds the success history used for frequency sampling.
	historyCapacity = 25
	// bootstrapSamples is the minimum history size before the measured
	// frequency is trusted.
	bootstrapSamples = 4
	// bootstrapFrequency is assumed until enough samples exist.
	bootstrapFrequency = 0.25
)

// Estimator tracks the completion instants of recent successful dispatches
// and produces a randomized pre-dispatch delay. A single shared instance is
// injected into the dispatch engine; estimates may run concurrently while
// success recording takes the write lock.
type Estimator struct {
	mu        sync.RWMutex
	history   instantHeap
	maxJitter time.Duration

	now       func() time.Time
	randFloat func() float64
}

func NewEstimator(maxJitter time.Duration) *Estimator {
	return &Estimator{
		maxJitter: maxJitter,
		now:       time.Now,
		randFloat: rand.Float64,
	}
}

// DelayForFrequency converts a request frequency (per second) into the upper
// delay bound recommended for that traffic level.
func DelayForFrequency(freq float64) time.Duration {
	a := (2.0 - math.Sqrt2) / 2.0
	return time.Duration(float64(time.Second) / (freq * a))
}

// EstimateDelay returns a delay drawn uniformly from [0, bound], where bound
// follows the measured request frequency and is clamped to the configured
// ceiling. A zero ceiling disables jittering entirely.
func (e *Estimator) EstimateDelay() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.maxJitter <= 0 {
		return 0
	}

	bound := e.maxJitter
	if len(e.history) < bootstrapSamples {
		bound = DelayForFrequency(bootstrapFrequency)
	} else if age := e.now().Sub(e.history[0]).Seconds(); age > 0 {
		bound = DelayForFrequency(float64(len(e.history)) / age)
	}

	if bound > e.maxJitter {
		bound = e.maxJitter
	}

	return time.Duration(e.randFloat() * float64(bound))
}

// RecordSuccess inserts the dispatch start instant of a notification that
// delivered to at least one device. Recording only successes keeps a
// malicious caller from shrinking the jitter with invalid requests. Past
// capacity the oldest instant is evicted.
func (e *Estimator) RecordSuccess(startedAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	heap.Push(&e.history, startedAt)
	if len(e.history) > historyCapacity {
		heap.Pop(&e.history)
	}
}

// Len returns the current history size.
func (e *Estimator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history)
}

// instantHeap is a min-heap of instants. Successes may be recorded out of
// order, and both eviction and frequency estimation need the oldest one.
type instantHeap []time.Time

func (h instantHeap) Len() int            { return len(h) }
func (h instantHeap) Less(i, j int) bool  { return h[i].Before(h[j]) }
func (h instantHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *instantHeap) Push(x interface{}) { *h = append(*h, x.(time.Time)) }

func (h *instantHeap) Pop() interface{} {
	old := *h
	n := len(old)
	last := old[n-1]
	*h = old[:n-1]
	return last
}
