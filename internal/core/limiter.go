package core

// limiter.go bounds how many reports render at once when the pipeline runs
// behind the HTTP server. Rendering holds every barcode of a run in the
// artifact directory and the finished PDF in memory, so parallel renders are
// capped. A request waits up to maxWait for a slot before failing with
// ErrTooManyReports.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyReports is returned when no render slot frees up within maxWait.
var ErrTooManyReports = errors.New("too many concurrent reports, please try again later")

// DefaultMaxConcurrentReports is the default limit for parallel renders.
const DefaultMaxConcurrentReports = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// ReportLimiter is a semaphore over report renders.
type ReportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.Mutex
	active int
}

// NewReportLimiter allows at most maxConcurrent simultaneous renders.
func NewReportLimiter(maxConcurrent int, maxWait time.Duration) *ReportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentReports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &ReportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a render slot. The caller must Release it (use defer).
func (l *ReportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyReports
	}
}

// Release frees a slot taken by Acquire.
func (l *ReportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// LimiterStatus is a snapshot of the limiter for monitoring.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *ReportLimiter) Status() LimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

// WaitForDrain blocks until no render is active or ctx is done.
func (l *ReportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		l.mu.Lock()
		active := l.active
		l.mu.Unlock()
		if active == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
