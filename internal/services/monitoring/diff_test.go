package monitoring

import (
	"testing"

	"pptlinks-bot/internal/model"
)

func item(id, kind, presentation string) model.ContentItem {
	c := model.ContentItem{ID: id, Type: kind, Name: "item " + id}
	if presentation != "" {
		c.PresentationStatus = model.StringPtr(presentation)
	}
	return c
}

func snapshotOf(sections ...[]model.ContentItem) model.Snapshot {
	s := model.Snapshot{ID: "course-1", Name: "Course"}
	for i, contents := range sections {
		s.Sections = append(s.Sections, model.Section{ID: string(rune('a' + i)), Title: "section", Contents: contents})
	}
	return s
}

func ids(items []model.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func equalIDs(got []model.ContentItem, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestDiff_NewFilesInTraversalOrder(t *testing.T) {
	old := snapshotOf([]model.ContentItem{item("f1", "PPT", "")})
	current := snapshotOf(
		[]model.ContentItem{item("f3", "VIDEO", ""), item("f1", "PPT", "")},
		[]model.ContentItem{item("f2", "PDF", ""), item("q1", "QUIZ", "")},
	)

	changes := Diff(old, current)
	if !equalIDs(changes.NewFiles, "f3", "f2") {
		t.Fatalf("NewFiles: got %v", ids(changes.NewFiles))
	}
	if !equalIDs(changes.NewQuizzes, "q1") {
		t.Fatalf("NewQuizzes: got %v", ids(changes.NewQuizzes))
	}
	if len(changes.LiveTransitions) != 0 {
		t.Fatalf("unexpected live transitions %v", ids(changes.LiveTransitions))
	}
}

func TestDiff_KindGroupsAreSeparate(t *testing.T) {
	// The same id reused as a quiz is still a new file.
	old := snapshotOf([]model.ContentItem{item("x", "QUIZ", "")})
	current := snapshotOf([]model.ContentItem{item("x", "QUIZ", ""), item("x", "VIDEO", "")})

	changes := Diff(old, current)
	if !equalIDs(changes.NewFiles, "x") || len(changes.NewQuizzes) != 0 {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestDiff_LiveTransitions(t *testing.T) {
	old := snapshotOf([]model.ContentItem{
		item("a", "PPT", "NOT_LIVE"),
		item("b", "VIDEO", "LIVE"),
		item("c", "PPT", ""),
		item("d", "PPT", "LIVE"),
	})
	current := snapshotOf([]model.ContentItem{
		item("a", "PPT", "LIVE"),
		item("b", "VIDEO", "LIVE"),
		item("c", "PPT", "LIVE"),
		item("d", "PPT", "NOT_LIVE"),
		item("e", "PPT", "LIVE"),
	})

	changes := Diff(old, current)
	if !equalIDs(changes.LiveTransitions, "a", "c") {
		t.Fatalf("LiveTransitions: got %v", ids(changes.LiveTransitions))
	}
	// A new item that is already live is reported as new, not as a transition.
	if !equalIDs(changes.NewFiles, "e") {
		t.Fatalf("NewFiles: got %v", ids(changes.NewFiles))
	}
}

func TestDiff_IdenticalSnapshotsAreEmpty(t *testing.T) {
	s := snapshotOf([]model.ContentItem{item("a", "PPT", "LIVE"), item("q", "QUIZ", "")})
	if changes := Diff(s, s); !changes.Empty() {
		t.Fatalf("want no changes, got %+v", changes)
	}
}

func TestChanges_EventsOrder(t *testing.T) {
	changes := Changes{
		NewFiles:        []model.ContentItem{item("f", "PPT", "")},
		NewQuizzes:      []model.ContentItem{item("q", "QUIZ", "")},
		LiveTransitions: []model.ContentItem{item("l", "VIDEO", "LIVE")},
	}
	events := changes.Events(snapshotOf())
	want := []EventKind{EventNewFile, EventNewQuiz, EventLive}
	if len(events) != len(want) {
		t.Fatalf("want %d events, got %d", len(want), len(events))
	}
	for i, event := range events {
		if event.Kind != want[i] {
			t.Fatalf("event %d: want %s, got %s", i, want[i], event.Kind)
		}
	}
}
