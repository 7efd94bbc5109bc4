package monitoring

import (
	"context"
	"time"

	"pptlinks-bot/internal/model"
)

type CourseProvider interface {
	Fetch(ctx context.Context, courseID string) (model.Snapshot, error)
}

// Notifier returns an error for ordinary delivery failures and never panics
// on them.
type Notifier interface {
	Deliver(ctx context.Context, subscriberID int64, message model.Message) error
}

type Renderer interface {
	Initial(snapshot model.Snapshot, overview Overview) model.Message
	Change(event Event) model.Message
	Reminder(reminder model.ScheduledReminder) model.Message
}

// Polls is the recurring job substrate, one job per pair.
type Polls interface {
	Every(key string, interval time.Duration, fn func())
	Remove(key string) bool
}
