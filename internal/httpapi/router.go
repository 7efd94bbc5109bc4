package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/services/monitoring"
)

// Monitor is the part of the monitoring service the API drives.
type Monitor interface {
	Subscribe(ctx context.Context, subscriberID int64, courseID string) (model.Subscription, bool, error)
	Unsubscribe(ctx context.Context, pair model.Pair) (bool, error)
	UnsubscribeAll(ctx context.Context, subscriberID int64) (int, error)
	Courses(ctx context.Context, subscriberID int64) ([]model.CourseSummary, error)
	Stats(ctx context.Context, subscriberID int64) (model.SubscriberStats, error)
	Check(ctx context.Context, pair model.Pair) (monitoring.CheckResult, error)
}

// PendingLister exposes the reminders waiting on the timer substrate.
type PendingLister interface {
	Pending() []string
	NextRun(key string) (time.Time, bool)
}

type Handler struct {
	monitor         Monitor
	reminders       PendingLister
	defaultCourseID string
	logger          zerolog.Logger
}

func NewHandler(monitor Monitor, reminders PendingLister, defaultCourseID string, logger zerolog.Logger) *Handler {
	return &Handler{
		monitor:         monitor,
		reminders:       reminders,
		defaultCourseID: defaultCourseID,
		logger:          logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Post("/subscriptions", h.handleSubscribe)
	r.Delete("/subscriptions/{subscriberID}/{courseID}", h.handleUnsubscribe)
	r.Delete("/subscriptions/{subscriberID}", h.handleUnsubscribeAll)
	r.Get("/subscribers/{subscriberID}/courses", h.handleCourses)
	r.Get("/subscribers/{subscriberID}/stats", h.handleStats)
	r.Post("/checks/{subscriberID}/{courseID}", h.handleCheck)
	r.Get("/reminders", h.handleReminders)

	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Post("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/allocs", pprof.Handler("allocs").ServeHTTP)
		r.Get("/block", pprof.Handler("block").ServeHTTP)
		r.Get("/goroutine", pprof.Handler("goroutine").ServeHTTP)
		r.Get("/heap", pprof.Handler("heap").ServeHTTP)
		r.Get("/mutex", pprof.Handler("mutex").ServeHTTP)
		r.Get("/threadcreate", pprof.Handler("threadcreate").ServeHTTP)
	})
	return r
}

type subscribeRequest struct {
	SubscriberID int64  `json:"subscriberId"`
	CourseID     string `json:"courseId"`
}

type subscriptionResponse struct {
	SubscriberID int64     `json:"subscriberId"`
	CourseID     string    `json:"courseId"`
	Active       bool      `json:"active"`
	SubscribedAt time.Time `json:"subscribedAt"`
	Created      bool      `json:"created"`
}

type courseResponse struct {
	CourseID     string    `json:"courseId"`
	CourseName   string    `json:"courseName"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

type reminderResponse struct {
	Key    string     `json:"key"`
	FireAt *time.Time `json:"fireAt,omitempty"`
}

type statsResponse struct {
	ActiveCourses int `json:"activeCourses"`
	Notifications int `json:"notifications"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CourseID = strings.TrimSpace(req.CourseID)
	if req.CourseID == "" {
		req.CourseID = h.defaultCourseID
	}
	if req.SubscriberID == 0 || req.CourseID == "" {
		writeError(w, http.StatusBadRequest, "subscriberId and courseId are required")
		return
	}

	sub, created, err := h.monitor.Subscribe(r.Context(), req.SubscriberID, req.CourseID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, subscriptionResponse{
		SubscriberID: sub.SubscriberID,
		CourseID:     sub.CourseID,
		Active:       sub.Active,
		SubscribedAt: sub.SubscribedAt,
		Created:      created,
	})
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairParam(w, r)
	if !ok {
		return
	}
	removed, err := h.monitor.Unsubscribe(r.Context(), pair)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no active subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnsubscribeAll(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := subscriberParam(w, r)
	if !ok {
		return
	}
	count, err := h.monitor.UnsubscribeAll(r.Context(), subscriberID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unsubscribed": count})
}

func (h *Handler) handleCourses(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := subscriberParam(w, r)
	if !ok {
		return
	}
	courses, err := h.monitor.Courses(r.Context(), subscriberID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	out := make([]courseResponse, 0, len(courses))
	for _, course := range courses {
		out = append(out, courseResponse{
			CourseID:     course.CourseID,
			CourseName:   course.CourseName,
			SubscribedAt: course.SubscribedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := subscriberParam(w, r)
	if !ok {
		return
	}
	stats, err := h.monitor.Stats(r.Context(), subscriberID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{ActiveCourses: stats.ActiveCourses, Notifications: stats.Notifications})
}

// handleCheck starts a check in the background and answers immediately.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairParam(w, r)
	if !ok {
		return
	}

	go func() {
		result, err := h.monitor.Check(context.Background(), pair)
		log := h.logger.With().Int64("subscriber_id", pair.SubscriberID).Str("course_id", pair.CourseID).Logger()
		switch {
		case errors.Is(err, monitoring.ErrNotSubscribed):
			log.Info().Msg("manual check for inactive subscription")
		case err != nil:
			log.Warn().Err(err).Msg("manual check failed")
		default:
			log.Info().Str("status", string(result.Status)).Int("events", result.Events).Msg("manual check done")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Check started"})
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	keys := h.reminders.Pending()
	pending := make([]reminderResponse, 0, len(keys))
	for _, key := range keys {
		item := reminderResponse{Key: key}
		if next, ok := h.reminders.NextRun(key); ok && !next.IsZero() {
			item.FireAt = &next
		}
		pending = append(pending, item)
	}
	writeJSON(w, http.StatusOK, map[string][]reminderResponse{"pending": pending})
}

func pairParam(w http.ResponseWriter, r *http.Request) (model.Pair, bool) {
	subscriberID, ok := subscriberParam(w, r)
	if !ok {
		return model.Pair{}, false
	}
	courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "courseID is required")
		return model.Pair{}, false
	}
	return model.Pair{SubscriberID: subscriberID, CourseID: courseID}, true
}

func subscriberParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	subscriberID, err := strconv.ParseInt(chi.URLParam(r, "subscriberID"), 10, 64)
	if err != nil || subscriberID == 0 {
		writeError(w, http.StatusBadRequest, "invalid subscriberID")
		return 0, false
	}
	return subscriberID, true
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
