package cart

import (
	"sync"
	"time"
)

const DefaultAddedWindow = 2 * time.Second

// AddedTracker remembers which events were just added so a caller can show
// an "added" state for a short window.
type AddedTracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	added  map[ID]time.Time
}

func NewAddedTracker(window time.Duration, now func() time.Time) *AddedTracker {
	if window <= 0 {
		window = DefaultAddedWindow
	}
	if now == nil {
		now = time.Now
	}
	return &AddedTracker{
		window: window,
		now:    now,
		added:  make(map[ID]time.Time),
	}
}

func (t *AddedTracker) MarkAdded(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.added[id] = t.now()
}

func (t *AddedTracker) RecentlyAdded(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.added[id]
	if !ok {
		return false
	}
	if t.now().Sub(at) >= t.window {
		delete(t.added, id)
		return false
	}
	return true
}
