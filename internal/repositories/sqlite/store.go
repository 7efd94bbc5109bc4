package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/repositories"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) GetCourse(ctx context.Context, subscriberID int64, courseID string) (model.CachedCourse, error) {
	var (
		course            model.CachedCourse
		snapshot, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT subscriber_id, course_id, course_name, snapshot, fingerprint, updated_at
		FROM course_cache
		WHERE subscriber_id = ? AND course_id = ?
	`, subscriberID, courseID).Scan(
		&course.SubscriberID, &course.CourseID, &course.CourseName, &snapshot, &course.Fingerprint, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CachedCourse{}, repositories.ErrNotFound
	}
	if err != nil {
		return model.CachedCourse{}, err
	}
	if err := json.Unmarshal([]byte(snapshot), &course.Snapshot); err != nil {
		return model.CachedCourse{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if course.UpdatedAt, err = parseTime(updated); err != nil {
		return model.CachedCourse{}, err
	}
	return course, nil
}

func (s *Store) SaveCourse(ctx context.Context, course model.CachedCourse) error {
	snapshot, err := json.Marshal(course.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO course_cache(subscriber_id, course_id, course_name, snapshot, fingerprint, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscriber_id, course_id) DO UPDATE SET
			course_name = excluded.course_name,
			snapshot = excluded.snapshot,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
	`, course.SubscriberID, course.CourseID, course.CourseName, string(snapshot), course.Fingerprint, formatTime(course.UpdatedAt))
	return err
}

func (s *Store) Subscribe(ctx context.Context, subscriberID int64, courseID string, at time.Time) (model.Subscription, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Subscription{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanSubscription(tx.QueryRowContext(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE subscriber_id = ? AND course_id = ?
	`, subscriberID, courseID))

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions(subscriber_id, course_id, active, subscribed_at, created_at)
			VALUES(?, ?, 1, ?, ?)
		`, subscriberID, courseID, formatTime(at), formatTime(at))
		if err != nil {
			return model.Subscription{}, false, err
		}
		existing = model.Subscription{
			SubscriberID: subscriberID,
			CourseID:     courseID,
			Active:       true,
			SubscribedAt: at.UTC(),
			CreatedAt:    at.UTC(),
		}
	case err != nil:
		return model.Subscription{}, false, err
	case existing.Active:
		return existing, false, nil
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE subscriptions SET active = 1, subscribed_at = ?
			WHERE subscriber_id = ? AND course_id = ?
		`, formatTime(at), subscriberID, courseID)
		if err != nil {
			return model.Subscription{}, false, err
		}
		existing.Active = true
		existing.SubscribedAt = at.UTC()
	}

	if err := tx.Commit(); err != nil {
		return model.Subscription{}, false, err
	}
	return existing, true, nil
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID int64, courseID string) (model.Subscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE subscriber_id = ? AND course_id = ?
	`, subscriberID, courseID))
}

func (s *Store) Deactivate(ctx context.Context, subscriberID int64, courseID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET active = 0
		WHERE subscriber_id = ? AND course_id = ? AND active = 1
	`, subscriberID, courseID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) DeactivateAll(ctx context.Context, subscriberID int64) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT course_id FROM subscriptions
		WHERE subscriber_id = ? AND active = 1
		ORDER BY course_id
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	var courseIDs []string
	for rows.Next() {
		var courseID string
		if err := rows.Scan(&courseID); err != nil {
			rows.Close()
			return nil, err
		}
		courseIDs = append(courseIDs, courseID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE subscriptions SET active = 0 WHERE subscriber_id = ? AND active = 1`, subscriberID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return courseIDs, nil
}

func (s *Store) ListActive(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE active = 1
		ORDER BY subscribed_at, subscriber_id, course_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) ListCourses(ctx context.Context, subscriberID int64) ([]model.CourseSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.course_id, COALESCE(c.course_name, ''), s.subscribed_at
		FROM subscriptions s
		LEFT JOIN course_cache c ON c.subscriber_id = s.subscriber_id AND c.course_id = s.course_id
		WHERE s.subscriber_id = ? AND s.active = 1
		ORDER BY s.subscribed_at, s.course_id
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.CourseSummary
	for rows.Next() {
		var (
			course     model.CourseSummary
			subscribed string
		)
		if err := rows.Scan(&course.CourseID, &course.CourseName, &subscribed); err != nil {
			return nil, err
		}
		if course.SubscribedAt, err = parseTime(subscribed); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

func (s *Store) LogNotification(ctx context.Context, entry model.NotificationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications(id, subscriber_id, course_id, kind, content, sent_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, entry.ID.String(), entry.SubscriberID, entry.CourseID, string(entry.Kind), entry.Content, formatTime(entry.SentAt))
	return err
}

func (s *Store) CountNotifications(ctx context.Context, subscriberID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE subscriber_id = ?`, subscriberID).Scan(&count)
	return count, err
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE sent_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
	var (
		sub                 model.Subscription
		active              int
		subscribed, created string
	)
	err := row.Scan(&sub.SubscriberID, &sub.CourseID, &active, &subscribed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscription{}, repositories.ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, err
	}
	sub.Active = active == 1
	if sub.SubscribedAt, err = parseTime(subscribed); err != nil {
		return model.Subscription{}, err
	}
	if sub.CreatedAt, err = parseTime(created); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

var _ repositories.Store = (*Store)(nil)
