package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/repositories"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetCourse(ctx context.Context, subscriberID int64, courseID string) (model.CachedCourse, error) {
	var (
		course   model.CachedCourse
		snapshot []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT subscriber_id, course_id, course_name, snapshot, fingerprint, updated_at
		FROM course_cache
		WHERE subscriber_id = $1 AND course_id = $2
	`, subscriberID, courseID).Scan(
		&course.SubscriberID, &course.CourseID, &course.CourseName, &snapshot, &course.Fingerprint, &course.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CachedCourse{}, repositories.ErrNotFound
	}
	if err != nil {
		return model.CachedCourse{}, err
	}
	if err := json.Unmarshal(snapshot, &course.Snapshot); err != nil {
		return model.CachedCourse{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return course, nil
}

func (s *Store) SaveCourse(ctx context.Context, course model.CachedCourse) error {
	snapshot, err := json.Marshal(course.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_cache (subscriber_id, course_id, course_name, snapshot, fingerprint, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (subscriber_id, course_id) DO UPDATE SET
			course_name = EXCLUDED.course_name,
			snapshot = EXCLUDED.snapshot,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = EXCLUDED.updated_at
	`, course.SubscriberID, course.CourseID, course.CourseName, string(snapshot), course.Fingerprint, course.UpdatedAt)
	return err
}

func (s *Store) Subscribe(ctx context.Context, subscriberID int64, courseID string, at time.Time) (model.Subscription, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Subscription{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := scanSubscription(tx.QueryRow(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE subscriber_id = $1 AND course_id = $2
		FOR UPDATE
	`, subscriberID, courseID))

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		existing, err = scanSubscription(tx.QueryRow(ctx, `
			INSERT INTO subscriptions (subscriber_id, course_id, active, subscribed_at, created_at)
			VALUES ($1, $2, TRUE, $3, $3)
			RETURNING subscriber_id, course_id, active, subscribed_at, created_at
		`, subscriberID, courseID, at))
	case err != nil:
		return model.Subscription{}, false, err
	case existing.Active:
		return existing, false, nil
	default:
		existing, err = scanSubscription(tx.QueryRow(ctx, `
			UPDATE subscriptions SET active = TRUE, subscribed_at = $3
			WHERE subscriber_id = $1 AND course_id = $2
			RETURNING subscriber_id, course_id, active, subscribed_at, created_at
		`, subscriberID, courseID, at))
	}
	if err != nil {
		return model.Subscription{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Subscription{}, false, err
	}
	return existing, true, nil
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID int64, courseID string) (model.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE subscriber_id = $1 AND course_id = $2
	`, subscriberID, courseID))
}

func (s *Store) Deactivate(ctx context.Context, subscriberID int64, courseID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET active = FALSE
		WHERE subscriber_id = $1 AND course_id = $2 AND active
	`, subscriberID, courseID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeactivateAll(ctx context.Context, subscriberID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE subscriptions SET active = FALSE
		WHERE subscriber_id = $1 AND active
		RETURNING course_id
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	courseIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return courseIDs, nil
}

func (s *Store) ListActive(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subscriber_id, course_id, active, subscribed_at, created_at
		FROM subscriptions
		WHERE active
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
	rows, err := s.pool.Query(ctx, `
		SELECT s.course_id, COALESCE(c.course_name, ''), s.subscribed_at
		FROM subscriptions s
		LEFT JOIN course_cache c ON c.subscriber_id = s.subscriber_id AND c.course_id = s.course_id
		WHERE s.subscriber_id = $1 AND s.active
		ORDER BY s.subscribed_at, s.course_id
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.CourseSummary
	for rows.Next() {
		var course model.CourseSummary
		if err := rows.Scan(&course.CourseID, &course.CourseName, &course.SubscribedAt); err != nil {
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, subscriber_id, course_id, kind, content, sent_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
	`, entry.ID.String(), entry.SubscriberID, entry.CourseID, string(entry.Kind), entry.Content, entry.SentAt)
	return err
}

func (s *Store) CountNotifications(ctx context.Context, subscriberID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE subscriber_id = $1`, subscriberID).Scan(&count)
	return count, err
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSubscription(row pgx.Row) (model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(&sub.SubscriberID, &sub.CourseID, &sub.Active, &sub.SubscribedAt, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subscription{}, repositories.ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

var _ repositories.Store = (*Store)(nil)
