package channelsync

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingTTL is the quiet period after which a user is no longer shown
// as typing. No explicit stop signal is required; the TTL alone is correct.
const DefaultTypingTTL = time.Second

type typingEntry struct {
	since     time.Time
	expiresAt time.Time
}

// TypingAggregator tracks who is currently typing in one channel. State is
// ephemeral and never persisted; it is rebuilt from the most recent signal
// per user and expires after the quiet period.
type TypingAggregator struct {
	mu      sync.Mutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]typingEntry
}

// NewTypingAggregator builds an aggregator with the given quiet period and
// time source. Zero values select DefaultTypingTTL and time.Now.
func NewTypingAggregator(ttl time.Duration, now func() time.Time) *TypingAggregator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TypingAggregator{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]typingEntry),
	}
}

// Signal records a typing state change. A typing signal replaces any prior
// entry for the user, restarting the quiet period; a not-typing signal
// removes the entry immediately.
func (a *TypingAggregator) Signal(userID string, isTyping bool) {
	if a == nil || userID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !isTyping {
		delete(a.entries, userID)
		return
	}

	now := a.now()
	a.entries[userID] = typingEntry{since: now, expiresAt: now.Add(a.ttl)}
}

// TypingUsers returns the sorted ids of users whose entries have not expired.
// Expired entries are removed as a side effect.
func (a *TypingAggregator) TypingUsers() []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	users := make([]string, 0, len(a.entries))
	for userID, entry := range a.entries {
		if now.After(entry.expiresAt) {
			delete(a.entries, userID)
			continue
		}
		users = append(users, userID)
	}
	if len(users) == 0 {
		return nil
	}
	sort.Strings(users)
	return users
}

// Sweep removes expired entries. The engine runs this on a timer so entries
// disappear even while nobody reads the set.
func (a *TypingAggregator) Sweep() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for userID, entry := range a.entries {
		if now.After(entry.expiresAt) {
			delete(a.entries, userID)
		}
	}
}

// Clear drops all entries. Called when the session disconnects.
func (a *TypingAggregator) Clear() {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.entries = make(map[string]typingEntry)
	a.mu.Unlock()
}
