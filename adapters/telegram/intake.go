package telegram

import (
	"fmt"
	"time"
)

const (
	defaultMaxAge = 5 * time.Minute
	maxSeenIDs    = 10000
	pruneCount    = 1000
)

// intake drops updates that are too old to act on or were already handled.
// It is owned by the poll loop and not safe for concurrent use.
type intake struct {
	maxAge time.Duration
	now    func() time.Time
	seen   map[int]bool
	order  []int
}

func newIntake(maxAge time.Duration) *intake {
	return &intake{maxAge: maxAge, now: time.Now, seen: make(map[int]bool)}
}

// admit records updateID. A zero sent time skips the age check; so does a
// non-positive maxAge.
func (in *intake) admit(updateID int, sent time.Time) error {
	if in.maxAge > 0 && !sent.IsZero() {
		if age := in.now().Sub(sent); age > in.maxAge {
			return fmt.Errorf("stale update: %v old", age.Truncate(time.Second))
		}
	}
	if in.seen[updateID] {
		return fmt.Errorf("duplicate update: %d", updateID)
	}

	if len(in.seen) >= maxSeenIDs {
		n := min(pruneCount, len(in.order))
		for _, id := range in.order[:n] {
			delete(in.seen, id)
		}
		in.order = in.order[n:]
	}
	in.seen[updateID] = true
	in.order = append(in.order, updateID)
	return nil
}
