package channelsync

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/team-channel/internal/testfixtures"
)

func TestTypingAggregator_ExpiresAfterQuietPeriod(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	agg := NewTypingAggregator(DefaultTypingTTL, clock.NowFunc())

	agg.Signal("user-x", true)
	if got := agg.TypingUsers(); !reflect.DeepEqual(got, []string{"user-x"}) {
		t.Fatalf("expected user-x typing, got %v", got)
	}

	// At exactly the TTL boundary the entry is still live.
	clock.Advance(1000 * time.Millisecond)
	if got := agg.TypingUsers(); !reflect.DeepEqual(got, []string{"user-x"}) {
		t.Fatalf("expected user-x still typing at TTL boundary, got %v", got)
	}

	clock.Advance(time.Millisecond)
	if got := agg.TypingUsers(); got != nil {
		t.Fatalf("expected typing set empty at 1001ms, got %v", got)
	}
}

func TestTypingAggregator_ResignalRestartsQuietPeriod(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	agg := NewTypingAggregator(DefaultTypingTTL, clock.NowFunc())

	agg.Signal("user-x", true)
	clock.Advance(900 * time.Millisecond)
	agg.Signal("user-x", true)
	clock.Advance(900 * time.Millisecond)

	if got := agg.TypingUsers(); !reflect.DeepEqual(got, []string{"user-x"}) {
		t.Fatalf("re-signal must restart the quiet period, got %v", got)
	}
}

func TestTypingAggregator_ExplicitStopRemovesImmediately(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	agg := NewTypingAggregator(DefaultTypingTTL, clock.NowFunc())

	agg.Signal("user-x", true)
	agg.Signal("user-y", true)
	agg.Signal("user-x", false)

	if got := agg.TypingUsers(); !reflect.DeepEqual(got, []string{"user-y"}) {
		t.Fatalf("expected only user-y after explicit stop, got %v", got)
	}
}

func TestTypingAggregator_SweepRemovesExpired(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	agg := NewTypingAggregator(DefaultTypingTTL, clock.NowFunc())

	agg.Signal("user-x", true)
	clock.Advance(2 * time.Second)
	agg.Sweep()

	agg.mu.Lock()
	entries := len(agg.entries)
	agg.mu.Unlock()
	if entries != 0 {
		t.Fatalf("sweep left %d entries", entries)
	}
}

func TestTypingAggregator_SortedOutput(t *testing.T) {
	t.Parallel()

	agg := NewTypingAggregator(DefaultTypingTTL, testfixtures.NewClock(time.Time{}).NowFunc())
	agg.Signal("user-c", true)
	agg.Signal("user-a", true)
	agg.Signal("user-b", true)

	want := []string{"user-a", "user-b", "user-c"}
	if got := agg.TypingUsers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
