package reminders

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pptlinks-bot/internal/model"
)

// Timers is the one-shot substrate reminders are registered on.
type Timers interface {
	At(key string, when time.Time, fn func()) bool
	Cancel(key string) bool
	Pending() []string
}

// Handler is invoked when a reminder fires.
type Handler func(ctx context.Context, reminder model.ScheduledReminder)

type Scheduler struct {
	timers  Timers
	handler Handler
	loc     *time.Location
	logger  zerolog.Logger
}

func NewScheduler(timers Timers, handler Handler, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{timers: timers, handler: handler, loc: loc, logger: logger}
}

// Schedule registers the reminders implied by snapshot for sub, replacing
// earlier registrations with the same key. Reminders previously registered
// for the pair that the snapshot no longer implies are cancelled.
func (s *Scheduler) Schedule(snapshot model.Snapshot, sub model.Subscription, now time.Time) []model.ScheduledReminder {
	planned, status := Plan(snapshot, sub, now, s.loc)
	if status == ExpiryUnknownDuration {
		s.logger.Warn().
			Int64("subscriber_id", sub.SubscriberID).
			Str("course_id", sub.CourseID).
			Str("duration", deref(snapshot.Duration)).
			Msg("course duration not recognised; expiry reminders skipped")
	}

	keep := make(map[string]struct{}, len(planned))
	registered := make([]model.ScheduledReminder, 0, len(planned))
	for _, reminder := range planned {
		reminder := reminder
		if !s.timers.At(reminder.Key, reminder.FireAt, func() { s.fire(reminder) }) {
			continue
		}
		keep[reminder.Key] = struct{}{}
		registered = append(registered, reminder)
	}

	stale := 0
	for _, key := range s.keysFor(sub.Pair()) {
		if _, ok := keep[key]; ok {
			continue
		}
		if s.timers.Cancel(key) {
			stale++
		}
	}

	s.logger.Debug().
		Int64("subscriber_id", sub.SubscriberID).
		Str("course_id", sub.CourseID).
		Int("scheduled", len(registered)).
		Int("cancelled", stale).
		Msg("reminders scheduled")
	return registered
}

// CancelPair drops every pending reminder of the pair.
func (s *Scheduler) CancelPair(pair model.Pair) int {
	cancelled := 0
	for _, key := range s.keysFor(pair) {
		if s.timers.Cancel(key) {
			cancelled++
		}
	}
	return cancelled
}

func (s *Scheduler) keysFor(pair model.Pair) []string {
	var keys []string
	for _, key := range s.timers.Pending() {
		if owner, ok := model.ReminderPair(key); ok && owner == pair {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *Scheduler) fire(reminder model.ScheduledReminder) {
	s.logger.Info().
		Str("kind", string(reminder.Kind)).
		Int64("subscriber_id", reminder.SubscriberID).
		Str("course_id", reminder.CourseID).
		Str("content_id", reminder.ContentID).
		Msg("reminder fired")
	if s.handler != nil {
		s.handler(context.Background(), reminder)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
