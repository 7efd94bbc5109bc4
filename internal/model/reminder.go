package model

import (
	"strconv"
	"strings"
	"time"
)

type ReminderKind string

const (
	ReminderQuizStart      ReminderKind = "QUIZ_START"
	ReminderQuizEnd        ReminderKind = "QUIZ_END"
	ReminderCourseExpiry   ReminderKind = "COURSE_EXPIRY"
	ReminderAutoDeactivate ReminderKind = "AUTO_DEACTIVATE"
)

type ScheduledReminder struct {
	Kind         ReminderKind
	SubscriberID int64
	CourseID     string
	ContentID    string
	ContentName  string
	CourseName   string
	EventAt      time.Time
	FireAt       time.Time
	Key          string
}

func (r ScheduledReminder) Pair() Pair {
	return Pair{SubscriberID: r.SubscriberID, CourseID: r.CourseID}
}

// ReminderKey is the idempotency key of a reminder. Content ids are scoped by
// course, so the course id is always part of the key.
func ReminderKey(kind ReminderKind, subscriberID int64, courseID, contentID string) string {
	target := contentID
	if target == "" {
		target = courseID
	}
	return strings.Join([]string{
		"reminder",
		string(kind),
		strconv.FormatInt(subscriberID, 10),
		courseID,
		target,
	}, "/")
}

// ReminderPair extracts the pair a reminder key belongs to.
func ReminderPair(key string) (Pair, bool) {
	parts := strings.SplitN(key, "/", 5)
	if len(parts) != 5 || parts[0] != "reminder" {
		return Pair{}, false
	}
	subscriberID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Pair{}, false
	}
	return Pair{SubscriberID: subscriberID, CourseID: parts[3]}, true
}
