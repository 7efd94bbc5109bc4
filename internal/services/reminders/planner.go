package reminders

import (
	"time"

	"pptlinks-bot/internal/model"
)

const (
	quizLead   = 24 * time.Hour
	expiryLead = 7 * 24 * time.Hour
)

// ExpiryStatus describes how the course expiry was (or was not) resolved.
type ExpiryStatus int

const (
	ExpiryUnset ExpiryStatus = iota
	ExpiryResolved
	ExpiryUnknownDuration
)

// Plan derives the reminders a snapshot implies for one subscription.
// Only reminders whose fire time is strictly after now are returned.
func Plan(snapshot model.Snapshot, sub model.Subscription, now time.Time, loc *time.Location) ([]model.ScheduledReminder, ExpiryStatus) {
	if loc == nil {
		loc = time.UTC
	}

	var planned []model.ScheduledReminder
	add := func(kind model.ReminderKind, item *model.ContentItem, eventAt, fireAt time.Time) {
		if !fireAt.After(now) {
			return
		}
		reminder := model.ScheduledReminder{
			Kind:         kind,
			SubscriberID: sub.SubscriberID,
			CourseID:     sub.CourseID,
			CourseName:   snapshot.DisplayName(),
			EventAt:      eventAt,
			FireAt:       fireAt,
		}
		if item != nil {
			reminder.ContentID = item.ID
			reminder.ContentName = item.Name
		}
		reminder.Key = model.ReminderKey(kind, sub.SubscriberID, sub.CourseID, reminder.ContentID)
		planned = append(planned, reminder)
	}

	for _, item := range snapshot.Items() {
		if item.Kind() != model.KindQuiz || item.Quiz == nil {
			continue
		}
		item := item
		if start, ok := model.ParseTimestamp(item.QuizStart(), loc); ok {
			add(model.ReminderQuizStart, &item, start, start.Add(-quizLead))
		}
		if end, ok := model.ParseTimestamp(item.QuizEnd(), loc); ok {
			add(model.ReminderQuizEnd, &item, end, end.Add(-quizLead))
		}
	}

	expiry, status := ResolveExpiry(snapshot, sub, loc)
	if status == ExpiryResolved {
		add(model.ReminderCourseExpiry, nil, expiry, expiry.Add(-expiryLead))
		add(model.ReminderAutoDeactivate, nil, expiry, expiry)
	}
	return planned, status
}

// ResolveExpiry prefers an explicit expiry timestamp and falls back to the
// course duration counted from the subscription time.
func ResolveExpiry(snapshot model.Snapshot, sub model.Subscription, loc *time.Location) (time.Time, ExpiryStatus) {
	if loc == nil {
		loc = time.UTC
	}
	if snapshot.Expiry != nil {
		if expiry, ok := model.ParseTimestamp(*snapshot.Expiry, loc); ok {
			return expiry, ExpiryResolved
		}
	}
	if snapshot.Duration == nil || *snapshot.Duration == "" {
		return time.Time{}, ExpiryUnset
	}
	days, ok := model.AccessDays(*snapshot.Duration)
	if !ok || sub.SubscribedAt.IsZero() {
		return time.Time{}, ExpiryUnknownDuration
	}
	return sub.SubscribedAt.In(loc).AddDate(0, 0, days), ExpiryResolved
}
