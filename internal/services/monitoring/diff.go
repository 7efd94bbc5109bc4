package monitoring

import "pptlinks-bot/internal/model"

type EventKind string

const (
	EventInitial EventKind = "initial"
	EventNewFile EventKind = "new_file"
	EventNewQuiz EventKind = "new_quiz"
	EventLive    EventKind = "live"
)

type Event struct {
	Kind     EventKind
	Item     model.ContentItem
	Snapshot model.Snapshot
}

type Changes struct {
	NewFiles        []model.ContentItem
	NewQuizzes      []model.ContentItem
	LiveTransitions []model.ContentItem
}

func (c Changes) Empty() bool {
	return len(c.NewFiles) == 0 && len(c.NewQuizzes) == 0 && len(c.LiveTransitions) == 0
}

// Events flattens the changes into delivery order: files, quizzes, then live
// transitions, each in snapshot traversal order.
func (c Changes) Events(snapshot model.Snapshot) []Event {
	events := make([]Event, 0, len(c.NewFiles)+len(c.NewQuizzes)+len(c.LiveTransitions))
	for _, item := range c.NewFiles {
		events = append(events, Event{Kind: EventNewFile, Item: item, Snapshot: snapshot})
	}
	for _, item := range c.NewQuizzes {
		events = append(events, Event{Kind: EventNewQuiz, Item: item, Snapshot: snapshot})
	}
	for _, item := range c.LiveTransitions {
		events = append(events, Event{Kind: EventLive, Item: item, Snapshot: snapshot})
	}
	return events
}

// Diff compares two snapshots of the same course. Items are matched by id
// within their kind group: files and videos against files and videos,
// quizzes against quizzes.
func Diff(old, current model.Snapshot) Changes {
	oldMaterials := map[string]model.ContentItem{}
	oldQuizzes := map[string]struct{}{}
	for _, item := range old.Items() {
		switch {
		case item.IsMaterial():
			oldMaterials[item.ID] = item
		case item.Kind() == model.KindQuiz:
			oldQuizzes[item.ID] = struct{}{}
		}
	}

	var changes Changes
	for _, item := range current.Items() {
		switch {
		case item.IsMaterial():
			previous, seen := oldMaterials[item.ID]
			if !seen {
				changes.NewFiles = append(changes.NewFiles, item)
				continue
			}
			if !previous.IsLive() && item.IsLive() {
				changes.LiveTransitions = append(changes.LiveTransitions, item)
			}
		case item.Kind() == model.KindQuiz:
			if _, seen := oldQuizzes[item.ID]; !seen {
				changes.NewQuizzes = append(changes.NewQuizzes, item)
			}
		}
	}
	return changes
}
