package scheduler

import (
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newStarted(t *testing.T) *Scheduler {
	t.Helper()
	s := New(zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestScheduler_AtFiresOnce(t *testing.T) {
	s := newStarted(t)

	fired := make(chan struct{}, 4)
	if !s.At("quiz", time.Now().Add(50*time.Millisecond), func() { fired <- struct{}{} }) {
		t.Fatalf("At rejected a future instant")
	}
	if got := s.Pending(); len(got) != 1 || got[0] != "quiz" {
		t.Fatalf("Pending: want [quiz], got %v", got)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("one-shot did not fire")
	}

	select {
	case <-fired:
		t.Fatalf("one-shot fired twice")
	case <-time.After(200 * time.Millisecond):
	}

	if got := s.Pending(); len(got) != 0 {
		t.Fatalf("Pending after fire: want empty, got %v", got)
	}
}

func TestScheduler_AtReplacesByKey(t *testing.T) {
	s := newStarted(t)

	var first, second atomic.Int32
	s.At("quiz", time.Now().Add(80*time.Millisecond), func() { first.Add(1) })
	s.At("quiz", time.Now().Add(120*time.Millisecond), func() { second.Add(1) })

	if got := s.Pending(); len(got) != 1 {
		t.Fatalf("Pending: want one entry, got %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for second.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if first.Load() != 0 {
		t.Fatalf("replaced one-shot fired %d times", first.Load())
	}
	if second.Load() != 1 {
		t.Fatalf("replacement fired %d times, want 1", second.Load())
	}
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	s := newStarted(t)

	var calls atomic.Int32
	s.At("expiry", time.Now().Add(60*time.Millisecond), func() { calls.Add(1) })
	if !s.Cancel("expiry") {
		t.Fatalf("Cancel: expected pending entry")
	}
	if s.Cancel("expiry") {
		t.Fatalf("Cancel twice should report false")
	}

	time.Sleep(250 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("cancelled one-shot fired")
	}
}

func TestScheduler_AtRejectsPast(t *testing.T) {
	s := New(zerolog.Nop())

	if s.At("late", time.Now().Add(-time.Second), func() {}) {
		t.Fatalf("At accepted a past instant")
	}
	if s.At("now", time.Now(), func() {}) {
		t.Fatalf("At accepted the current instant")
	}
	if got := s.Pending(); len(got) != 0 {
		t.Fatalf("Pending: want empty, got %v", got)
	}
}

func TestScheduler_EveryReplaceAndRemove(t *testing.T) {
	s := New(zerolog.Nop())

	s.Every("poll/1/course", 10*time.Minute, func() {})
	s.Every("poll/1/course", 5*time.Minute, func() {})
	s.Every("poll/2/course", 10*time.Minute, func() {})

	got := s.Periodic()
	if len(got) != 2 || got[0] != "poll/1/course" || got[1] != "poll/2/course" {
		t.Fatalf("Periodic: unexpected keys %v", got)
	}

	if !s.Remove("poll/1/course") {
		t.Fatalf("Remove: expected existing job")
	}
	if s.Remove("poll/1/course") {
		t.Fatalf("Remove twice should report false")
	}
	if got := s.Periodic(); len(got) != 1 {
		t.Fatalf("Periodic after remove: %v", got)
	}
}

func TestScheduler_NearFutureOneShotsAllFire(t *testing.T) {
	s := newStarted(t)

	const n = 200
	var fired atomic.Int32
	for i := 0; i < n; i++ {
		key := "burst/" + strconv.Itoa(i)
		if !s.At(key, time.Now().Add(20*time.Microsecond), func() { fired.Add(1) }) {
			// The instant may already be behind us; nothing was registered.
			fired.Add(1)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() < n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := fired.Load(); got != n {
		t.Fatalf("want %d one-shots fired, got %d", n, got)
	}
	if pending := s.Pending(); len(pending) != 0 {
		t.Fatalf("one-shots stuck as pending: %d", len(pending))
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s := newStarted(t)

	when := time.Now().Add(time.Hour).Truncate(time.Second)
	s.At("reminder/QUIZ_START/1/c1/q1", when, func() {})

	deadline := time.Now().Add(time.Second)
	next, ok := s.NextRun("reminder/QUIZ_START/1/c1/q1")
	for ok && next.IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		next, ok = s.NextRun("reminder/QUIZ_START/1/c1/q1")
	}
	if !ok || !next.Equal(when) {
		t.Fatalf("NextRun: want %s, got %s (ok=%v)", when, next, ok)
	}
	if _, ok := s.NextRun("missing"); ok {
		t.Fatalf("NextRun reported an unknown key")
	}
}
