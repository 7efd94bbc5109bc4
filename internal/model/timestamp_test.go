package model

import (
	"testing"
	"time"
)

func TestParseTimestamp_NaiveUsesLocation(t *testing.T) {
	lagos := time.FixedZone("WAT", 60*60)

	got, ok := ParseTimestamp("2025-11-01T10:00:00", lagos)
	if !ok {
		t.Fatalf("expected naive timestamp to parse")
	}
	want := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got.UTC())
	}
	if got.Location() != lagos {
		t.Fatalf("want location %s, got %s", lagos, got.Location())
	}
}

func TestParseTimestamp_OffsetIsConverted(t *testing.T) {
	lagos := time.FixedZone("WAT", 60*60)

	got, ok := ParseTimestamp("2025-11-01T10:00:00.000Z", lagos)
	if !ok {
		t.Fatalf("expected RFC3339 timestamp to parse")
	}
	if got.Hour() != 11 {
		t.Fatalf("want 11:00 Lagos time, got %s", got)
	}
	if !got.Equal(time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("instant changed during conversion: %s", got)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, value := range []string{"", "   ", "tomorrow", "2025-13-45"} {
		if _, ok := ParseTimestamp(value, time.UTC); ok {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}

func TestAccessDays(t *testing.T) {
	cases := map[string]int{
		"ONE_MONTH":    30,
		"two_months":   60,
		"THREE_MONTHS": 90,
		"SIX_MONTHS":   180,
		"ONE_YEAR":     365,
		"45":           45,
	}
	for value, want := range cases {
		got, ok := AccessDays(value)
		if !ok || got != want {
			t.Fatalf("AccessDays(%q): want %d, got %d (ok=%v)", value, want, got, ok)
		}
	}

	if _, ok := AccessDays("FOREVER"); ok {
		t.Fatalf("unknown duration should not resolve")
	}
}

func TestReminderKeyRoundTrip(t *testing.T) {
	key := ReminderKey(ReminderQuizStart, 42, "course-1", "quiz-9")
	pair, ok := ReminderPair(key)
	if !ok {
		t.Fatalf("ReminderPair(%q) failed", key)
	}
	if pair.SubscriberID != 42 || pair.CourseID != "course-1" {
		t.Fatalf("unexpected pair %+v", pair)
	}

	courseKey := ReminderKey(ReminderCourseExpiry, 42, "course-1", "")
	if courseKey != "reminder/COURSE_EXPIRY/42/course-1/course-1" {
		t.Fatalf("unexpected course-level key %q", courseKey)
	}

	if _, ok := ReminderPair("poll/42/course-1"); ok {
		t.Fatalf("non-reminder key should not parse")
	}
}
