package repositories

import (
	"context"
	"errors"
	"time"

	"pptlinks-bot/internal/model"
)

var ErrNotFound = errors.New("record not found")

// CourseRepository keeps the last known snapshot of every tracked pair.
type CourseRepository interface {
	GetCourse(ctx context.Context, subscriberID int64, courseID string) (model.CachedCourse, error)
	SaveCourse(ctx context.Context, course model.CachedCourse) error
}

type SubscriptionRepository interface {
	// Subscribe creates the subscription or reactivates a deactivated one,
	// resetting its subscription time. It reports false when the
	// subscription was already active.
	Subscribe(ctx context.Context, subscriberID int64, courseID string, at time.Time) (model.Subscription, bool, error)
	GetSubscription(ctx context.Context, subscriberID int64, courseID string) (model.Subscription, error)
	Deactivate(ctx context.Context, subscriberID int64, courseID string) (bool, error)
	// DeactivateAll returns the ids of the courses that were deactivated.
	DeactivateAll(ctx context.Context, subscriberID int64) ([]string, error)
	ListActive(ctx context.Context) ([]model.Subscription, error)
	ListCourses(ctx context.Context, subscriberID int64) ([]model.CourseSummary, error)
}

type NotificationRepository interface {
	LogNotification(ctx context.Context, entry model.NotificationLog) error
	CountNotifications(ctx context.Context, subscriberID int64) (int, error)
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Store interface {
	CourseRepository
	SubscriptionRepository
	NotificationRepository
	Close()
}
