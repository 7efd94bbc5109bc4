package monitoring

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"pptlinks-bot/internal/model"
)

// Fingerprint digests the notification-relevant projection of a snapshot.
// encoding/json sorts map keys, arrays keep the order they arrived in.
func Fingerprint(snapshot model.Snapshot) string {
	sections := make([]any, 0, len(snapshot.Sections))
	for _, section := range snapshot.Sections {
		contents := make([]any, 0, len(section.Contents))
		for _, item := range section.Contents {
			contents = append(contents, projectItem(item))
		}
		sections = append(sections, map[string]any{
			"id":       section.ID,
			"title":    section.Title,
			"contents": contents,
		})
	}

	payload, _ := json.Marshal(map[string]any{
		"course_id": snapshot.ID,
		"sections":  sections,
	})

	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func projectItem(item model.ContentItem) map[string]any {
	out := map[string]any{
		"id":                 item.ID,
		"name":               item.Name,
		"type":               item.Type,
		"status":             item.Status,
		"presentationStatus": item.PresentationStatus,
	}
	if item.Kind() == model.KindQuiz && item.Quiz != nil {
		out["quiz"] = map[string]any{
			"status":    item.Quiz.Status,
			"startTime": item.Quiz.StartTime,
			"endTime":   item.Quiz.EndTime,
			"duration":  item.Quiz.Duration,
		}
	}
	if item.File != nil {
		out["file"] = *item.File
	}
	return out
}
