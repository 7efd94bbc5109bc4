package model

import (
	"strconv"
	"time"
)

type Subscription struct {
	SubscriberID int64
	CourseID     string
	Active       bool
	SubscribedAt time.Time
	CreatedAt    time.Time
}

func (s Subscription) Pair() Pair {
	return Pair{SubscriberID: s.SubscriberID, CourseID: s.CourseID}
}

// Pair is the unit of periodic polling.
type Pair struct {
	SubscriberID int64
	CourseID     string
}

func (p Pair) Key() string {
	return strconv.FormatInt(p.SubscriberID, 10) + "/" + p.CourseID
}

type CachedCourse struct {
	SubscriberID int64
	CourseID     string
	CourseName   string
	Snapshot     Snapshot
	Fingerprint  string
	UpdatedAt    time.Time
}

type CourseSummary struct {
	CourseID     string
	CourseName   string
	SubscribedAt time.Time
}

type SubscriberStats struct {
	ActiveCourses int
	Notifications int
}
