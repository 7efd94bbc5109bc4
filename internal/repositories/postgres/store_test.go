package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"pptlinks-bot/internal/db"
	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/repositories"
)

// openStore connects to TEST_POSTGRES_DSN and skips when it is unset.
func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if err := db.EnsureSchema(ctx, pool, "../../.."); err != nil {
		pool.Close()
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE subscriptions, course_cache, notifications`); err != nil {
		pool.Close()
		t.Fatalf("truncate: %v", err)
	}

	store := NewStore(pool)
	t.Cleanup(store.Close)
	return store
}

func TestStore_SubscriptionAndCache(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	at := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	sub, created, err := store.Subscribe(ctx, 42, "course-1", at)
	if err != nil || !created || !sub.Active {
		t.Fatalf("Subscribe: %+v created=%v err=%v", sub, created, err)
	}
	if ok, err := store.Deactivate(ctx, 42, "course-1"); err != nil || !ok {
		t.Fatalf("Deactivate: ok=%v err=%v", ok, err)
	}

	later := at.AddDate(0, 1, 0)
	sub, created, err = store.Subscribe(ctx, 42, "course-1", later)
	if err != nil || !created || !sub.SubscribedAt.Equal(later) {
		t.Fatalf("reactivate: %+v created=%v err=%v", sub, created, err)
	}

	course := model.CachedCourse{
		SubscriberID: 42,
		CourseID:     "course-1",
		CourseName:   "Statistics",
		Snapshot:     model.Snapshot{ID: "course-1", Name: "Statistics"},
		Fingerprint:  "abc",
		UpdatedAt:    later,
	}
	if err := store.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse: %v", err)
	}
	got, err := store.GetCourse(ctx, 42, "course-1")
	if err != nil || got.Fingerprint != "abc" || got.Snapshot.Name != "Statistics" {
		t.Fatalf("GetCourse: %+v err=%v", got, err)
	}
	if _, err := store.GetCourse(ctx, 43, "course-1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	ids, err := store.DeactivateAll(ctx, 42)
	if err != nil || len(ids) != 1 || ids[0] != "course-1" {
		t.Fatalf("DeactivateAll: %v err=%v", ids, err)
	}
}
