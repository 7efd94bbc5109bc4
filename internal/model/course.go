package model

import "strings"

type ContentKind string

const (
	KindFile  ContentKind = "FILE"
	KindVideo ContentKind = "VIDEO"
	KindQuiz  ContentKind = "QUIZ"
	KindOther ContentKind = "OTHER"
)

const (
	PresentationLive    = "LIVE"
	PresentationNotLive = "NOT_LIVE"
)

// Snapshot is one fetched representation of a course. Optional upstream
// fields are pointers so that a missing field stays distinguishable from an
// empty one.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Duration    *string   `json:"duration,omitempty"`
	Expiry      *string   `json:"expiry,omitempty"`
	Sections    []Section `json:"sections"`
}

type Section struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Contents []ContentItem `json:"contents"`
}

type ContentItem struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	Name               string    `json:"name"`
	Status             *string   `json:"status,omitempty"`
	PresentationStatus *string   `json:"presentationStatus,omitempty"`
	File               *string   `json:"file,omitempty"`
	Quiz               *QuizInfo `json:"quiz,omitempty"`
}

type QuizInfo struct {
	Status    *string `json:"status,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
	Duration  *string `json:"duration,omitempty"`
}

// Kind maps the upstream content type onto the kinds notifications care
// about. Slides and documents are uploaded as PPT/PDF/DOC and count as files.
func (c ContentItem) Kind() ContentKind {
	switch strings.ToUpper(strings.TrimSpace(c.Type)) {
	case "FILE", "PPT", "PPTX", "PDF", "DOC", "DOCX":
		return KindFile
	case "VIDEO":
		return KindVideo
	case "QUIZ":
		return KindQuiz
	default:
		return KindOther
	}
}

func (c ContentItem) IsMaterial() bool {
	kind := c.Kind()
	return kind == KindFile || kind == KindVideo
}

func (c ContentItem) IsLive() bool {
	return c.PresentationStatus != nil && *c.PresentationStatus == PresentationLive
}

func (c ContentItem) QuizStart() string {
	if c.Quiz == nil || c.Quiz.StartTime == nil {
		return ""
	}
	return *c.Quiz.StartTime
}

func (c ContentItem) QuizEnd() string {
	if c.Quiz == nil || c.Quiz.EndTime == nil {
		return ""
	}
	return *c.Quiz.EndTime
}

// Items returns every content item in section order, then content order.
func (s Snapshot) Items() []ContentItem {
	var items []ContentItem
	for _, section := range s.Sections {
		items = append(items, section.Contents...)
	}
	return items
}

func (s Snapshot) DisplayName() string {
	if strings.TrimSpace(s.Name) == "" {
		return "Course"
	}
	return s.Name
}

func StringPtr(value string) *string {
	return &value
}
