// Package domain contains the core business entities and value objects.
package domain

import (
	"errors"
	"sync"
	"time"
)

// ErrNoKeysAvailable is returned when every configured API key is retired
// or the ring is empty.
var ErrNoKeysAvailable = errors.New("no API keys available in the ring")

// KeyRing rotates through the configured Anthropic API keys round-robin.
// A key that starts failing (revoked, over quota) can be retired from the
// rotation; retired keys return automatically once their cooldown expires.
//
// All methods are safe for concurrent use.
type KeyRing struct {
	mu       sync.Mutex
	active   []string
	retired  map[string]time.Time
	known    map[string]struct{}
	next     int
	cooldown time.Duration
}

// NewKeyRing builds a KeyRing from the given keys. Empty and duplicate
// entries are dropped. A cooldown of 0 disables automatic restoration;
// retired keys then stay out until Restore is called.
func NewKeyRing(keys []string, cooldown time.Duration) *KeyRing {
	r := &KeyRing{
		retired:  make(map[string]time.Time),
		known:    make(map[string]struct{}),
		cooldown: cooldown,
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := r.known[k]; dup {
			continue
		}
		r.known[k] = struct{}{}
		r.active = append(r.active, k)
	}
	return r
}

// Next returns the next key in round-robin order, restoring any retired
// keys whose cooldown has expired first.
func (r *KeyRing) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.restoreExpiredLocked()

	if len(r.active) == 0 {
		return "", ErrNoKeysAvailable
	}
	key := r.active[r.next%len(r.active)]
	r.next++
	return key, nil
}

// Retire removes a key from the rotation until its cooldown expires.
// Unknown keys are ignored.
func (r *KeyRing) Retire(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[key]; !ok {
		return
	}
	if _, already := r.retired[key]; already {
		return
	}
	r.retired[key] = time.Now()
	kept := r.active[:0]
	for _, k := range r.active {
		if k != key {
			kept = append(kept, k)
		}
	}
	r.active = kept
}

// Restore puts a retired key back into the rotation immediately.
func (r *KeyRing) Restore(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restoreLocked(key)
}

func (r *KeyRing) restoreLocked(key string) {
	if _, wasRetired := r.retired[key]; !wasRetired {
		return
	}
	delete(r.retired, key)
	r.active = append(r.active, key)
}

func (r *KeyRing) restoreExpiredLocked() {
	if r.cooldown == 0 || len(r.retired) == 0 {
		return
	}
	now := time.Now()
	for key, at := range r.retired {
		if now.Sub(at) >= r.cooldown {
			r.restoreLocked(key)
		}
	}
}

// ActiveCount returns the number of keys currently in rotation.
func (r *KeyRing) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// RetiredCount returns the number of keys currently out of rotation.
func (r *KeyRing) RetiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}

// Size returns the total number of managed keys.
func (r *KeyRing) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.known)
}
