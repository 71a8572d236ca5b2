// internal/app/system/flagstore/flagstore.go

// Package flagstore holds the short-lived cross-request state the auth flows
// need: the recovery-intent flag a browser sets before handing off to the
// provider. Entries are keyed by the per-flow state nonce, so concurrent
// flows never observe each other's flags, and carry explicit expiry so a
// stale value cannot resurrect a flow that already completed.
//
// The store is a TTL-aware string map behind an interface so expiry logic is
// testable without real timers and so an alternate backend can be swapped in
// without touching callers.
package flagstore

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is a TTL-aware key→string map.
type Store interface {
	// Get returns the value for key, or ("", false) when absent or expired.
	Get(key string) (string, bool)
	// Set stores value until the given absolute expiry. A zero time means no
	// expiry.
	Set(key, value string, expiresAt time.Time)
	// Remove deletes key if present.
	Remove(key string)
}

// cacheStore backs Store with an in-process go-cache instance. Expiry is
// evaluated against the injected clock on read, so tests can advance time
// without sleeping; go-cache's own janitor handles eventual cleanup.
type cacheStore struct {
	c   *gocache.Cache
	now func() time.Time
}

type entry struct {
	Value     string    `json:"v"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// New returns a process-local TTL store.
func New() Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns a store whose expiry checks use the given clock.
func NewWithClock(now func() time.Time) Store {
	return &cacheStore{
		c:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		now: now,
	}
}

func (s *cacheStore) Get(key string) (string, bool) {
	raw, ok := s.c.Get(key)
	if !ok {
		return "", false
	}
	e, ok := raw.(entry)
	if !ok {
		return "", false
	}
	if !e.ExpiresAt.IsZero() && s.now().After(e.ExpiresAt) {
		s.c.Delete(key)
		return "", false
	}
	return e.Value, true
}

func (s *cacheStore) Set(key, value string, expiresAt time.Time) {
	ttl := gocache.NoExpiration
	if !expiresAt.IsZero() {
		// Give go-cache a grace margin; authoritative expiry is the
		// clock check in Get.
		ttl = expiresAt.Sub(s.now()) + time.Minute
		if ttl <= 0 {
			s.c.Delete(key)
			return
		}
	}
	s.c.Set(key, entry{Value: value, ExpiresAt: expiresAt}, ttl)
}

func (s *cacheStore) Remove(key string) {
	s.c.Delete(key)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Typed scopes                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	recoveryFlagPrefix = "recovery_intent:"

	// RecoveryFlagTTL bounds how long a recovery intent set earlier in the
	// flow can still route the callback to the set-password screen.
	RecoveryFlagTTL = 10 * time.Minute
)

// Flags wraps a Store with the typed scopes the auth flows use.
type Flags struct {
	store Store
	now   func() time.Time
}

// NewFlags wraps store with typed accessors.
func NewFlags(store Store) *Flags {
	return NewFlagsWithClock(store, time.Now)
}

// NewFlagsWithClock is NewFlags with an injected clock for tests.
func NewFlagsWithClock(store Store, now func() time.Time) *Flags {
	return &Flags{store: store, now: now}
}

// MarkRecoveryIntent records that the flow identified by state is a password
// recovery. The state is the nonce minted for the provider redirect, so the
// flag can only reroute the callback that carries the same nonce back.
func (f *Flags) MarkRecoveryIntent(state string) {
	if state == "" {
		return
	}
	f.store.Set(recoveryFlagPrefix+state, "1", f.now().Add(RecoveryFlagTTL))
}

// RecoveryIntent reports whether a live recovery intent exists for the flow
// identified by state and consumes it. Consuming prevents a stale flag from
// rerouting a later login on the same flow; other flows' flags are untouched.
func (f *Flags) RecoveryIntent(state string) bool {
	if state == "" {
		return false
	}
	key := recoveryFlagPrefix + state
	_, ok := f.store.Get(key)
	if ok {
		f.store.Remove(key)
	}
	return ok
}
