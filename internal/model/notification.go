package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyInitial      NotificationKind = "initial"
	NotifyNewFile      NotificationKind = "new_file"
	NotifyNewQuiz      NotificationKind = "new_quiz"
	NotifyLive         NotificationKind = "live"
	NotifyQuizStart    NotificationKind = "quiz_start"
	NotifyQuizEnd      NotificationKind = "quiz_end"
	NotifyCourseExpiry NotificationKind = "course_expiry"
	NotifyAccessEnded  NotificationKind = "access_ended"
)

type NotificationLog struct {
	ID           uuid.UUID
	SubscriberID int64
	CourseID     string
	Kind         NotificationKind
	Content      string
	SentAt       time.Time
}

type Message struct {
	Text    string
	Actions []Action
}

type Action struct {
	Label string
	URL   string
}
