package pptlinks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pptlinks-bot/internal/model"
)

const coursePayloadJSON = `{
	"id": "6650c1",
	"name": " Financial Accounting ",
	"duration": "THREE_MONTHS",
	"expiresAt": null,
	"progress": 42,
	"CourseSection": [
		{
			"id": 17,
			"title": "Week 1",
			"contents": [
				{"id": 101, "type": "ppt", "name": "Slides", "status": "PUBLISHED", "presentationStatus": "NOT_LIVE", "file": "uploads/slides.pdf"},
				{"id": "v-1", "type": "VIDEO", "name": "Lecture", "presentationStatus": "LIVE"},
				{"type": "PPT", "name": "no id"},
				{"id": "q-1", "type": "QUIZ", "name": "Quiz 1", "quiz": {"status": "ACTIVE", "startTime": "2025-10-10T09:00:00", "endTime": "2025-10-10T11:00:00", "duration": 30}}
			]
		}
	]
}`

func newTestClient(server *httptest.Server, options ...Option) *Client {
	options = append([]Option{
		WithHTTPClient(server.Client()),
		WithRetryInterval(time.Millisecond),
		WithMaxAttempts(3),
	}, options...)
	return NewClient(server.URL, zerolog.Nop(), options...)
}

func TestClient_FetchDecodesCourse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/course/user-courses/6650c1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("brief") != "false" || r.URL.Query().Get("timeZone") != "Africa/Lagos" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(coursePayloadJSON))
	}))
	defer server.Close()

	snapshot, err := newTestClient(server).Fetch(context.Background(), "6650c1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if snapshot.ID != "6650c1" || snapshot.Name != "Financial Accounting" {
		t.Fatalf("unexpected course header %+v", snapshot)
	}
	if snapshot.Duration == nil || *snapshot.Duration != "THREE_MONTHS" || snapshot.Expiry != nil {
		t.Fatalf("unexpected expiry fields duration=%v expiry=%v", snapshot.Duration, snapshot.Expiry)
	}
	if len(snapshot.Sections) != 1 || snapshot.Sections[0].ID != "17" {
		t.Fatalf("unexpected sections %+v", snapshot.Sections)
	}

	items := snapshot.Items()
	if len(items) != 3 {
		t.Fatalf("items without ids must be dropped, got %d", len(items))
	}
	if items[0].ID != "101" || items[0].Kind() != model.KindFile || *items[0].File != "uploads/slides.pdf" {
		t.Fatalf("unexpected file item %+v", items[0])
	}
	if !items[1].IsLive() {
		t.Fatalf("presentation status lost")
	}
	quiz := items[2]
	if quiz.Quiz == nil || quiz.QuizStart() != "2025-10-10T09:00:00" || *quiz.Quiz.Duration != "30" {
		t.Fatalf("unexpected quiz %+v", quiz.Quiz)
	}
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"id":"c1","name":"Course","CourseSection":[]}`))
		}
	}))
	defer server.Close()

	snapshot, err := newTestClient(server).Fetch(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snapshot.ID != "c1" || hits.Load() != 3 {
		t.Fatalf("want success on third attempt, got %+v after %d hits", snapshot, hits.Load())
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), "c1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("want StatusError 502, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("want 3 attempts, got %d", hits.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "course not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("want StatusError 404, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", hits.Load())
	}
}

func TestClient_MalformedBodyIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	if _, err := newTestClient(server).Fetch(context.Background(), "c1"); !errors.Is(err, errDecode) {
		t.Fatalf("want decode error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("decode errors must not be retried, got %d attempts", hits.Load())
	}
}

func TestClient_AttemptTimeout(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(server, WithTimeout(20*time.Millisecond), WithMaxAttempts(2))
	start := time.Now()
	if _, err := client.Fetch(context.Background(), "c1"); err == nil {
		t.Fatalf("want timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("attempt timeout not applied, took %s", elapsed)
	}
	if hits.Load() != 2 {
		t.Fatalf("timeouts should be retried, got %d attempts", hits.Load())
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("seconds: got %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("empty: got %s", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("garbage: got %s", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Fatalf("http date: got %s", got)
	}
}
