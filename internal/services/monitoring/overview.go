package monitoring

import (
	"sort"
	"time"

	"pptlinks-bot/internal/model"
)

const upcomingQuizLimit = 3

// Overview summarises a course for the initial notification.
type Overview struct {
	Files    int
	Videos   int
	Quizzes  int
	Upcoming []UpcomingQuiz
}

type UpcomingQuiz struct {
	Item    model.ContentItem
	StartAt time.Time
}

// Summarize counts the course content and picks the nearest quizzes that
// have not started yet.
func Summarize(snapshot model.Snapshot, now time.Time, loc *time.Location) Overview {
	var overview Overview
	for _, item := range snapshot.Items() {
		switch item.Kind() {
		case model.KindFile:
			overview.Files++
		case model.KindVideo:
			overview.Videos++
		case model.KindQuiz:
			overview.Quizzes++
			if start, ok := model.ParseTimestamp(item.QuizStart(), loc); ok && start.After(now) {
				overview.Upcoming = append(overview.Upcoming, UpcomingQuiz{Item: item, StartAt: start})
			}
		}
	}

	sort.SliceStable(overview.Upcoming, func(i, j int) bool {
		return overview.Upcoming[i].StartAt.Before(overview.Upcoming[j].StartAt)
	})
	if len(overview.Upcoming) > upcomingQuizLimit {
		overview.Upcoming = overview.Upcoming[:upcomingQuizLimit]
	}
	return overview
}
