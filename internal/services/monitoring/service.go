package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pptlinks-bot/internal/model"
	"pptlinks-bot/internal/repositories"
	"pptlinks-bot/internal/services/reminders"
)

var ErrNotSubscribed = errors.New("no active subscription")

type CheckStatus string

const (
	StatusInitial   CheckStatus = "initial"
	StatusUnchanged CheckStatus = "unchanged"
	StatusChanged   CheckStatus = "changed"
	StatusExpired   CheckStatus = "expired"
)

type CheckResult struct {
	Status      CheckStatus
	Fingerprint string
	Events      int
	Delivered   int
	Reminders   int
}

type Config struct {
	PollInterval       time.Duration
	Location           *time.Location
	RestoreConcurrency int
	// Now overrides the clock; tests only.
	Now func() time.Time
}

type Service struct {
	store     repositories.Store
	provider  CourseProvider
	notifier  Notifier
	renderer  Renderer
	polls     Polls
	reminders *reminders.Scheduler
	logger    zerolog.Logger

	interval           time.Duration
	loc                *time.Location
	restoreConcurrency int
	now                func() time.Time

	mu    sync.Mutex
	locks map[model.Pair]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

func NewService(
	store repositories.Store,
	provider CourseProvider,
	notifier Notifier,
	renderer Renderer,
	polls Polls,
	timers reminders.Timers,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RestoreConcurrency <= 0 {
		cfg.RestoreConcurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		store:              store,
		provider:           provider,
		notifier:           notifier,
		renderer:           renderer,
		polls:              polls,
		logger:             logger.With().Str("component", "monitor").Logger(),
		interval:           cfg.PollInterval,
		loc:                cfg.Location,
		restoreConcurrency: cfg.RestoreConcurrency,
		now:                cfg.Now,
		locks:              map[model.Pair]*pairLock{},
	}
	s.reminders = reminders.NewScheduler(timers, s.handleReminder, cfg.Location,
		logger.With().Str("component", "reminders").Logger())
	return s
}

// Check polls one pair: fetch, compare fingerprints, notify what changed,
// persist the snapshot and reschedule reminders. Checks of the same pair
// never overlap.
func (s *Service) Check(ctx context.Context, pair model.Pair) (CheckResult, error) {
	unlock := s.lock(pair)
	defer unlock()

	sub, err := s.store.GetSubscription(ctx, pair.SubscriberID, pair.CourseID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !sub.Active) {
		return CheckResult{}, ErrNotSubscribed
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("load subscription: %w", err)
	}

	snapshot, err := s.provider.Fetch(ctx, pair.CourseID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("fetch course %s: %w", pair.CourseID, err)
	}
	if expired, err := s.expireIfLapsed(ctx, sub, snapshot); err != nil || expired {
		return CheckResult{Status: StatusExpired}, err
	}
	fingerprint := Fingerprint(snapshot)

	cached, err := s.store.GetCourse(ctx, pair.SubscriberID, pair.CourseID)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.track(ctx, sub, snapshot, fingerprint)
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("load cached course: %w", err)
	}

	log := s.pairLogger(pair)
	if cached.Fingerprint == fingerprint {
		log.Debug().Msg("course unchanged")
		return CheckResult{Status: StatusUnchanged, Fingerprint: fingerprint}, nil
	}

	events := Diff(cached.Snapshot, snapshot).Events(snapshot)
	result := CheckResult{Status: StatusChanged, Fingerprint: fingerprint, Events: len(events)}
	for _, event := range events {
		if s.deliver(ctx, pair, notificationKind(event.Kind), event.Item.Name, s.renderer.Change(event)) {
			result.Delivered++
		}
	}

	if err := s.save(ctx, pair, snapshot, fingerprint); err != nil {
		return result, err
	}
	result.Reminders = len(s.reminders.Schedule(snapshot, sub, s.now()))

	log.Info().
		Int("events", result.Events).
		Int("delivered", result.Delivered).
		Int("reminders", result.Reminders).
		Msg("course changed")
	return result, nil
}

// track handles the first successful fetch of a pair.
func (s *Service) track(ctx context.Context, sub model.Subscription, snapshot model.Snapshot, fingerprint string) (CheckResult, error) {
	pair := sub.Pair()
	if err := s.save(ctx, pair, snapshot, fingerprint); err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{Status: StatusInitial, Fingerprint: fingerprint, Events: 1}
	message := s.renderer.Initial(snapshot, Summarize(snapshot, s.now(), s.loc))
	if s.deliver(ctx, pair, model.NotifyInitial, snapshot.DisplayName(), message) {
		result.Delivered = 1
	}
	result.Reminders = len(s.reminders.Schedule(snapshot, sub, s.now()))

	s.pairLogger(pair).Info().Int("reminders", result.Reminders).Msg("course tracked")
	return result, nil
}

// Subscribe activates a pair, starts its poll job and runs the first check
// right away. Reactivating a pair keeps its cached snapshot; subscribing to
// an already active pair changes nothing.
func (s *Service) Subscribe(ctx context.Context, subscriberID int64, courseID string) (model.Subscription, bool, error) {
	pair := model.Pair{SubscriberID: subscriberID, CourseID: courseID}

	unlock := s.lock(pair)
	sub, created, err := s.store.Subscribe(ctx, subscriberID, courseID, s.now())
	if err != nil {
		unlock()
		return model.Subscription{}, false, fmt.Errorf("subscribe: %w", err)
	}
	s.startPolling(pair)
	if created {
		s.restoreReminders(ctx, sub)
	}
	unlock()

	if !created {
		return sub, false, nil
	}
	s.pairLogger(pair).Info().Msg("subscribed")
	if _, err := s.Check(ctx, pair); err != nil {
		s.pairLogger(pair).Warn().Err(err).Msg("first check failed")
	}
	return sub, created, nil
}

// Unsubscribe deactivates the pair and cancels its poll job and reminders.
// An in-flight check of the pair is allowed to finish first.
func (s *Service) Unsubscribe(ctx context.Context, pair model.Pair) (bool, error) {
	unlock := s.lock(pair)
	defer unlock()

	ok, err := s.store.Deactivate(ctx, pair.SubscriberID, pair.CourseID)
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	s.stopTracking(pair)
	return ok, nil
}

func (s *Service) UnsubscribeAll(ctx context.Context, subscriberID int64) (int, error) {
	courseIDs, err := s.store.DeactivateAll(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("unsubscribe all: %w", err)
	}
	for _, courseID := range courseIDs {
		pair := model.Pair{SubscriberID: subscriberID, CourseID: courseID}
		unlock := s.lock(pair)
		s.stopTracking(pair)
		unlock()
	}
	return len(courseIDs), nil
}

// Restore re-registers poll jobs for every active pair and re-derives their
// reminders from the cached snapshots. Pairs whose access ended while the
// process was down are deactivated instead. It runs once at process start
// and returns the number of pairs still tracked.
func (s *Service) Restore(ctx context.Context) (int, error) {
	subs, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active subscriptions: %w", err)
	}

	var tracked atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.restoreConcurrency)
	for _, sub := range subs {
		sub := sub
		group.Go(func() error {
			unlock := s.lock(sub.Pair())
			defer unlock()
			if s.resume(gctx, sub) {
				tracked.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	s.logger.Info().Int("pairs", len(subs)).Int64("tracked", tracked.Load()).Msg("subscriptions restored")
	return int(tracked.Load()), nil
}

func (s *Service) Courses(ctx context.Context, subscriberID int64) ([]model.CourseSummary, error) {
	courses, err := s.store.ListCourses(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *Service) Stats(ctx context.Context, subscriberID int64) (model.SubscriberStats, error) {
	courses, err := s.store.ListCourses(ctx, subscriberID)
	if err != nil {
		return model.SubscriberStats{}, fmt.Errorf("list courses: %w", err)
	}
	count, err := s.store.CountNotifications(ctx, subscriberID)
	if err != nil {
		return model.SubscriberStats{}, fmt.Errorf("count notifications: %w", err)
	}
	return model.SubscriberStats{ActiveCourses: len(courses), Notifications: count}, nil
}

// CleanupNotifications drops log entries older than retention.
func (s *Service) CleanupNotifications(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.store.DeleteNotificationsBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	s.logger.Info().Int64("deleted", deleted).Msg("notification log cleaned")
	return deleted, nil
}

func (s *Service) handleReminder(ctx context.Context, reminder model.ScheduledReminder) {
	pair := reminder.Pair()
	log := s.pairLogger(pair).With().Str("kind", string(reminder.Kind)).Logger()

	unlock := s.lock(pair)
	defer unlock()

	sub, err := s.store.GetSubscription(ctx, pair.SubscriberID, pair.CourseID)
	if err != nil || !sub.Active {
		log.Debug().Err(err).Msg("reminder for inactive pair dropped")
		return
	}

	message := s.renderer.Reminder(reminder)
	switch reminder.Kind {
	case model.ReminderAutoDeactivate:
		if err := s.expire(ctx, reminder); err != nil {
			log.Error().Err(err).Msg("auto deactivation failed")
		}
	case model.ReminderQuizStart:
		s.deliver(ctx, pair, model.NotifyQuizStart, reminder.ContentName, message)
	case model.ReminderQuizEnd:
		s.deliver(ctx, pair, model.NotifyQuizEnd, reminder.ContentName, message)
	case model.ReminderCourseExpiry:
		s.deliver(ctx, pair, model.NotifyCourseExpiry, reminder.CourseName, message)
	}
}

// expireIfLapsed ends the pair's access when its expiry is already behind
// now, which happens when the deactivation reminder could not fire.
func (s *Service) expireIfLapsed(ctx context.Context, sub model.Subscription, snapshot model.Snapshot) (bool, error) {
	expiry, status := reminders.ResolveExpiry(snapshot, sub, s.loc)
	if status != reminders.ExpiryResolved || expiry.After(s.now()) {
		return false, nil
	}
	err := s.expire(ctx, model.ScheduledReminder{
		Kind:         model.ReminderAutoDeactivate,
		SubscriberID: sub.SubscriberID,
		CourseID:     sub.CourseID,
		CourseName:   snapshot.DisplayName(),
		EventAt:      expiry,
		FireAt:       expiry,
		Key:          model.ReminderKey(model.ReminderAutoDeactivate, sub.SubscriberID, sub.CourseID, ""),
	})
	return err == nil, err
}

// expire deactivates the pair, drops its poll job and reminders and tells
// the subscriber. The caller holds the pair lock.
func (s *Service) expire(ctx context.Context, reminder model.ScheduledReminder) error {
	pair := reminder.Pair()
	if _, err := s.store.Deactivate(ctx, pair.SubscriberID, pair.CourseID); err != nil {
		return fmt.Errorf("deactivate expired subscription: %w", err)
	}
	s.stopTracking(pair)
	s.deliver(ctx, pair, model.NotifyAccessEnded, reminder.CourseName, s.renderer.Reminder(reminder))
	s.pairLogger(pair).Info().Time("expired_at", reminder.EventAt).Msg("subscription expired")
	return nil
}

func (s *Service) deliver(ctx context.Context, pair model.Pair, kind model.NotificationKind, content string, message model.Message) bool {
	log := s.pairLogger(pair).With().Str("notification", string(kind)).Logger()
	if err := s.notifier.Deliver(ctx, pair.SubscriberID, message); err != nil {
		log.Warn().Err(err).Msg("delivery failed")
		return false
	}

	entry := model.NotificationLog{
		ID:           uuid.New(),
		SubscriberID: pair.SubscriberID,
		CourseID:     pair.CourseID,
		Kind:         kind,
		Content:      content,
		SentAt:       s.now(),
	}
	if err := s.store.LogNotification(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("notification log write failed")
	}
	return true
}

func (s *Service) save(ctx context.Context, pair model.Pair, snapshot model.Snapshot, fingerprint string) error {
	err := s.store.SaveCourse(ctx, model.CachedCourse{
		SubscriberID: pair.SubscriberID,
		CourseID:     pair.CourseID,
		CourseName:   snapshot.DisplayName(),
		Snapshot:     snapshot,
		Fingerprint:  fingerprint,
		UpdatedAt:    s.now(),
	})
	if err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}

func (s *Service) restoreReminders(ctx context.Context, sub model.Subscription) {
	cached, err := s.store.GetCourse(ctx, sub.SubscriberID, sub.CourseID)
	if errors.Is(err, repositories.ErrNotFound) {
		return
	}
	if err != nil {
		s.pairLogger(sub.Pair()).Warn().Err(err).Msg("load cached course for reminders")
		return
	}
	s.reminders.Schedule(cached.Snapshot, sub, s.now())
}

// resume puts a restored pair back under tracking. It reports false when the
// pair turned out to be expired.
func (s *Service) resume(ctx context.Context, sub model.Subscription) bool {
	cached, err := s.store.GetCourse(ctx, sub.SubscriberID, sub.CourseID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
	case err != nil:
		s.pairLogger(sub.Pair()).Warn().Err(err).Msg("load cached course for reminders")
	default:
		expired, err := s.expireIfLapsed(ctx, sub, cached.Snapshot)
		if err != nil {
			s.pairLogger(sub.Pair()).Error().Err(err).Msg("expire lapsed subscription")
		}
		if expired {
			return false
		}
		s.reminders.Schedule(cached.Snapshot, sub, s.now())
	}
	s.startPolling(sub.Pair())
	return true
}

func (s *Service) startPolling(pair model.Pair) {
	s.polls.Every(PollKey(pair), s.interval, func() { s.poll(pair) })
}

func (s *Service) stopTracking(pair model.Pair) {
	s.polls.Remove(PollKey(pair))
	s.reminders.CancelPair(pair)
}

func (s *Service) poll(pair model.Pair) {
	if _, err := s.Check(context.Background(), pair); err != nil {
		s.pairLogger(pair).Warn().Err(err).Msg("check failed")
	}
}

// lock serialises work on one pair. Entries are reference counted and leave
// the map once nobody holds or waits for them.
func (s *Service) lock(pair model.Pair) func() {
	s.mu.Lock()
	l, ok := s.locks[pair]
	if !ok {
		l = &pairLock{}
		s.locks[pair] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, pair)
		}
		s.mu.Unlock()
	}
}

func (s *Service) pairLogger(pair model.Pair) *zerolog.Logger {
	logger := s.logger.With().
		Int64("subscriber_id", pair.SubscriberID).
		Str("course_id", pair.CourseID).
		Logger()
	return &logger
}

// PollKey names the recurring job of a pair.
func PollKey(pair model.Pair) string {
	return "poll/" + pair.Key()
}

func notificationKind(kind EventKind) model.NotificationKind {
	switch kind {
	case EventNewFile:
		return model.NotifyNewFile
	case EventNewQuiz:
		return model.NotifyNewQuiz
	case EventLive:
		return model.NotifyLive
	default:
		return model.NotifyInitial
	}
}
