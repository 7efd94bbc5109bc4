package pptlinks

import (
	"strings"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/providers/common"
)

// coursePayload mirrors the user-courses response. Ids arrive as strings or
// numbers depending on the record, so they are decoded loosely.
type coursePayload struct {
	ID          any              `json:"id"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Duration    any              `json:"duration"`
	Expiry      any              `json:"expiry"`
	ExpiresAt   any              `json:"expiresAt"`
	Sections    []sectionPayload `json:"CourseSection"`
}

type sectionPayload struct {
	ID       any              `json:"id"`
	Title    string           `json:"title"`
	Contents []contentPayload `json:"contents"`
}

type contentPayload struct {
	ID                 any          `json:"id"`
	Type               string       `json:"type"`
	Name               string       `json:"name"`
	Status             any          `json:"status"`
	PresentationStatus any          `json:"presentationStatus"`
	File               any          `json:"file"`
	Quiz               *quizPayload `json:"quiz"`
}

type quizPayload struct {
	Status    any `json:"status"`
	StartTime any `json:"startTime"`
	EndTime   any `json:"endTime"`
	Duration  any `json:"duration"`
}

func (p coursePayload) snapshot(courseID string) model.Snapshot {
	snapshot := model.Snapshot{
		ID:          common.FirstString(p.ID, courseID),
		Name:        strings.TrimSpace(p.Name),
		Description: p.Description,
		Duration:    common.OptionalString(p.Duration),
		Expiry:      common.OptionalString(p.Expiry),
		Sections:    make([]model.Section, 0, len(p.Sections)),
	}
	if snapshot.Expiry == nil {
		snapshot.Expiry = common.OptionalString(p.ExpiresAt)
	}

	for _, s := range p.Sections {
		section := model.Section{
			ID:       common.ToString(s.ID),
			Title:    s.Title,
			Contents: make([]model.ContentItem, 0, len(s.Contents)),
		}
		for _, c := range s.Contents {
			id := common.ToString(c.ID)
			if id == "" {
				continue
			}
			item := model.ContentItem{
				ID:                 id,
				Type:               strings.ToUpper(strings.TrimSpace(c.Type)),
				Name:               c.Name,
				Status:             common.OptionalString(c.Status),
				PresentationStatus: common.OptionalString(c.PresentationStatus),
				File:               common.OptionalString(c.File),
			}
			if c.Quiz != nil {
				item.Quiz = &model.QuizInfo{
					Status:    common.OptionalString(c.Quiz.Status),
					StartTime: common.OptionalString(c.Quiz.StartTime),
					EndTime:   common.OptionalString(c.Quiz.EndTime),
					Duration:  common.OptionalString(c.Quiz.Duration),
				}
			}
			section.Contents = append(section.Contents, item)
		}
		snapshot.Sections = append(snapshot.Sections, section)
	}
	return snapshot
}
