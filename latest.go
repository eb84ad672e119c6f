package chartcrafter

import (
	"sync"
	"time"
)

// LatestRescanInterval bounds how long Status trusts the tracked newest
// chart before listing the store again. Charts written by other instances
// sharing the store show up after at most this long.
const LatestRescanInterval = 5 * time.Minute

// latestTracker remembers the most recently stored chart so Status does not
// list the whole store on every health probe. Writes from this process are
// observed directly; everything else comes from a periodic rescan.
type latestTracker struct {
	mu         sync.Mutex
	id         string
	storedAt   time.Time
	observedAt time.Time
	scannedAt  time.Time
	valid      bool
}

// current returns the tracked id when the last scan is still fresh.
func (l *latestTracker) current(now time.Time) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.valid || now.Sub(l.scannedAt) >= LatestRescanInterval {
		return "", false
	}
	return l.id, true
}

// observe records a chart written by this process.
func (l *latestTracker) observe(id string, storedAt, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.id == "" || !storedAt.Before(l.storedAt) {
		l.id, l.storedAt = id, storedAt
	}
	l.observedAt = now
}

// forget drops id if it is the tracked chart; the next Status rescans.
func (l *latestTracker) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.id == id {
		l.id, l.storedAt = "", time.Time{}
		l.valid = false
	}
}

// seed installs the result of a listing that started at scanStart and
// returns the tracked id. A chart observed while the listing ran is newer
// than anything it could report.
func (l *latestTracker) seed(id string, storedAt, scanStart, now time.Time) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.id == "" || l.observedAt.Before(scanStart) {
		l.id, l.storedAt = id, storedAt
	}
	l.scannedAt = now
	l.valid = true
	return l.id
}
