package auth

import (
	"sync"
	"time"
)

// Denylist holds signed-out tokens until they would have expired anyway.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewDenylist constructs an empty denylist.
func NewDenylist() *Denylist {
	return &Denylist{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke denies key until expiresAt. A zero expiresAt keeps it for a day.
func (d *Denylist) Revoke(key string, expiresAt time.Time) {
	if d == nil || key == "" {
		return
	}
	if expiresAt.IsZero() {
		expiresAt = d.now().Add(24 * time.Hour)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep()
	d.entries[key] = expiresAt
}

// Revoked reports whether key was signed out.
func (d *Denylist) Revoked(key string) bool {
	if d == nil || key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	expiresAt, ok := d.entries[key]
	if !ok {
		return false
	}
	if d.now().After(expiresAt) {
		delete(d.entries, key)
		return false
	}
	return true
}

// Len returns the number of live entries.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep()
	return len(d.entries)
}

func (d *Denylist) sweep() {
	now := d.now()
	for key, expiresAt := range d.entries {
		if now.After(expiresAt) {
			delete(d.entries, key)
		}
	}
}
