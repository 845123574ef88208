// Package ratelimit throttles repeated bot replies per key.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned by Check while a key is locked out.
var ErrLimited = errors.New("rate limited")

type record struct {
	hits     []time.Time
	lockedAt time.Time
}

// Limiter counts hits per key and locks a key out once it reaches maxHits
// within window.
type Limiter struct {
	maxHits int
	window  time.Duration
	lockout time.Duration

	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

// New creates a limiter.
func New(maxHits int, window, lockout time.Duration) *Limiter {
	if maxHits < 1 {
		maxHits = 1
	}
	return &Limiter{
		maxHits: maxHits,
		window:  window,
		lockout: lockout,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Check returns ErrLimited if key is currently locked out.
func (l *Limiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(key)
}

func (l *Limiter) checkLocked(key string) error {
	r := l.records[key]
	if r == nil || r.lockedAt.IsZero() {
		return nil
	}

	elapsed := l.now().Sub(r.lockedAt)
	if elapsed < l.lockout {
		return fmt.Errorf("%w: retry in %s", ErrLimited, (l.lockout - elapsed).Truncate(time.Second))
	}
	delete(l.records, key)
	return nil
}

// Record counts one hit for key.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(key)
}

func (l *Limiter) recordLocked(key string) {
	now := l.now()
	r := l.records[key]
	if r == nil {
		r = &record{}
		l.records[key] = r
	}

	cutoff := now.Add(-l.window)
	fresh := r.hits[:0]
	for _, t := range r.hits {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	r.hits = append(fresh, now)

	if len(r.hits) >= l.maxHits {
		r.lockedAt = now
	}
}

// Allow is Check followed by Record when the key is not limited, done
// atomically.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.checkLocked(key) != nil {
		return false
	}
	l.recordLocked(key)
	return true
}

// Reset clears all state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}
