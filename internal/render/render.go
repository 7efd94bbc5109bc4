// Package render turns course events and reminders into Telegram HTML
// messages.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/services/monitoring"
)

const (
	DefaultWebBase  = "https://pptlinks.com"
	DefaultFileBase = "https://d26pxqw2kk6v5i.cloudfront.net/"

	timeLayout        = "January 02, 2006 at 03:04 PM"
	descriptionLimit  = 300
	fallbackQuizTitle = "Quiz"
)

type Renderer struct {
	webBase  string
	fileBase string
	loc      *time.Location
}

func New(webBase, fileBase string, loc *time.Location) *Renderer {
	if webBase == "" {
		webBase = DefaultWebBase
	}
	if fileBase == "" {
		fileBase = DefaultFileBase
	}
	if !strings.HasSuffix(fileBase, "/") {
		fileBase += "/"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		webBase:  strings.TrimRight(webBase, "/"),
		fileBase: fileBase,
		loc:      loc,
	}
}

func (r *Renderer) Initial(snapshot model.Snapshot, overview monitoring.Overview) model.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "📚 <b>Now tracking %s</b>\n", r.courseName(snapshot))
	if snapshot.Description != nil {
		if description := truncate(PlainText(*snapshot.Description), descriptionLimit); description != "" {
			fmt.Fprintf(&b, "\n<i>%s</i>\n", html.EscapeString(description))
		}
	}
	fmt.Fprintf(&b, "\n📄 Files: %d\n🎥 Videos: %d\n📝 Quizzes: %d\n", overview.Files, overview.Videos, overview.Quizzes)

	if len(overview.Upcoming) > 0 {
		b.WriteString("\n<b>Upcoming quizzes</b>\n")
		for _, quiz := range overview.Upcoming {
			fmt.Fprintf(&b, "• %s - %s\n", r.itemName(quiz.Item, fallbackQuizTitle), r.formatTime(quiz.StartAt))
		}
	}

	b.WriteString("\nYou will be notified about new files, quizzes and live classes.")
	return model.Message{
		Text:    b.String(),
		Actions: []model.Action{r.courseAction(snapshot.ID)},
	}
}

func (r *Renderer) Change(event monitoring.Event) model.Message {
	course := r.courseName(event.Snapshot)
	item := event.Item

	switch event.Kind {
	case monitoring.EventNewFile:
		msg := model.Message{
			Text: fmt.Sprintf("📄 <b>New file in %s</b>\n\n%s", course, r.itemName(item, "Untitled file")),
		}
		if link := r.fileURL(item.File); link != "" {
			msg.Actions = append(msg.Actions, model.Action{Label: "View", URL: link})
		}
		return msg

	case monitoring.EventNewQuiz:
		var b strings.Builder
		fmt.Fprintf(&b, "📝 <b>New quiz in %s</b>\n\n%s\n", course, r.itemName(item, fallbackQuizTitle))
		if start, ok := model.ParseTimestamp(item.QuizStart(), r.loc); ok {
			fmt.Fprintf(&b, "\nStarts: %s", r.formatTime(start))
		}
		if end, ok := model.ParseTimestamp(item.QuizEnd(), r.loc); ok {
			fmt.Fprintf(&b, "\nEnds: %s", r.formatTime(end))
		}
		return model.Message{
			Text:    strings.TrimRight(b.String(), "\n"),
			Actions: []model.Action{r.quizAction(item.ID)},
		}

	case monitoring.EventLive:
		return model.Message{
			Text:    fmt.Sprintf("🔴 <b>%s is live now</b>\n\nJoin the class in %s.", r.itemName(item, "A presentation"), course),
			Actions: []model.Action{r.courseAction(event.Snapshot.ID)},
		}
	}

	return model.Message{Text: fmt.Sprintf("Update in %s", course)}
}

func (r *Renderer) Reminder(reminder model.ScheduledReminder) model.Message {
	course := html.EscapeString(orDefault(PlainText(reminder.CourseName), "Course"))
	content := html.EscapeString(orDefault(PlainText(reminder.ContentName), fallbackQuizTitle))
	at := r.formatTime(reminder.EventAt)

	switch reminder.Kind {
	case model.ReminderQuizStart:
		return model.Message{
			Text:    fmt.Sprintf("⏰ <b>Quiz reminder</b>\n\n%s in %s starts on %s.", content, course, at),
			Actions: []model.Action{r.quizAction(reminder.ContentID)},
		}
	case model.ReminderQuizEnd:
		return model.Message{
			Text:    fmt.Sprintf("⌛ <b>Quiz closing soon</b>\n\n%s in %s closes on %s.", content, course, at),
			Actions: []model.Action{r.quizAction(reminder.ContentID)},
		}
	case model.ReminderCourseExpiry:
		return model.Message{
			Text:    fmt.Sprintf("📅 <b>Course access expiring</b>\n\nYour access to %s ends in 7 days, on %s.", course, at),
			Actions: []model.Action{r.courseAction(reminder.CourseID)},
		}
	case model.ReminderAutoDeactivate:
		return model.Message{
			Text: fmt.Sprintf("🔒 <b>Course access ended</b>\n\nYour access to %s has ended. Notifications for it are now off.", course),
		}
	}
	return model.Message{Text: fmt.Sprintf("Reminder for %s", course)}
}

var blockBreaks = strings.NewReplacer("<br", " <br", "</p>", "</p> ", "</li>", "</li> ", "</div>", "</div> ")

// PlainText strips markup from upstream names and descriptions and collapses
// whitespace. Values that fail to parse are returned trimmed.
func PlainText(value string) string {
	if !strings.ContainsAny(value, "<&") {
		return strings.Join(strings.Fields(value), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockBreaks.Replace(value)))
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (r *Renderer) courseName(snapshot model.Snapshot) string {
	return html.EscapeString(orDefault(PlainText(snapshot.Name), "Course"))
}

func (r *Renderer) itemName(item model.ContentItem, fallback string) string {
	return html.EscapeString(orDefault(PlainText(item.Name), fallback))
}

func (r *Renderer) formatTime(t time.Time) string {
	return t.In(r.loc).Format(timeLayout)
}

func (r *Renderer) courseAction(courseID string) model.Action {
	return model.Action{Label: "Open course", URL: r.webBase + "/course/" + courseID}
}

func (r *Renderer) quizAction(quizID string) model.Action {
	return model.Action{Label: "Take Quiz", URL: r.webBase + "/quiz/" + quizID}
}

// fileURL resolves upload paths against the file CDN; absolute links are
// kept as they are.
func (r *Renderer) fileURL(file *string) string {
	if file == nil {
		return ""
	}
	path := strings.TrimSpace(*file)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	default:
		return r.fileBase + strings.TrimLeft(path, "/")
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
