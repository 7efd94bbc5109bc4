package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler owns the process-wide cron instance. Recurring poll jobs and
// one-shot reminders are both registered under string keys so callers can
// replace or cancel them without tracking cron entry ids.
type Scheduler struct {
	cron   *cron.Cron
	logger cron.Logger

	mu       sync.Mutex
	periodic map[string]cron.EntryID
	oneShots map[string]*oneShot
}

// oneShot identifies one registration of a key; a replacement under the
// same key is a different pointer.
type oneShot struct {
	id cron.EntryID
}

func New(logger zerolog.Logger) *Scheduler {
	cronLog := NewCronLogger(logger)
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		logger:   cronLog,
		periodic: map[string]cron.EntryID{},
		oneShots: map[string]*oneShot{},
	}
}

func (s *Scheduler) Start() error {
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Every runs fn every interval under key, replacing a job already registered
// under the same key. A run that is still going when the next tick arrives
// makes that tick a no-op.
func (s *Scheduler) Every(key string, interval time.Duration, fn func()) {
	job := cron.NewChain(cron.SkipIfStillRunning(s.logger)).Then(cron.FuncJob(fn))

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.periodic[key]; ok {
		s.cron.Remove(id)
	}
	s.periodic[key] = s.cron.Schedule(cron.Every(interval), job)
}

func (s *Scheduler) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.periodic[key]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.periodic, key)
	return true
}

func (s *Scheduler) Periodic() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.periodic)
}

// Cron registers an unkeyed job on a standard cron spec.
func (s *Scheduler) Cron(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// At runs fn once at when, replacing any one-shot registered under key.
// Instants that are not in the future are rejected.
func (s *Scheduler) At(key string, when time.Time, fn func()) bool {
	if !when.After(time.Now()) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.oneShots[key]; ok {
		s.cron.Remove(prev.id)
		delete(s.oneShots, key)
	}

	// The job only touches entry through claim, which waits for s.mu, so it
	// always sees the id assigned below.
	entry := &oneShot{}
	s.oneShots[key] = entry
	entry.id = s.cron.Schedule(&once{at: when}, cron.FuncJob(func() {
		if !s.claim(key, entry) {
			return
		}
		fn()
	}))
	return true
}

func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.oneShots[key]
	if !ok {
		return false
	}
	s.cron.Remove(entry.id)
	delete(s.oneShots, key)
	return true
}

// Pending lists the keys of one-shots that have not fired yet.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.oneShots)
}

func (s *Scheduler) NextRun(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.periodic[key]
	if entry, found := s.oneShots[key]; found {
		id, ok = entry.id, true
	}
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// claim drops the bookkeeping for a one-shot that is about to run. It reports
// false when the entry was replaced or cancelled in the meantime.
func (s *Scheduler) claim(key string, entry *oneShot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oneShots[key] != entry {
		return false
	}
	delete(s.oneShots, key)
	s.cron.Remove(entry.id)
	return true
}

// once fires a single time. Cron asks for the next instant when the entry
// is added and again after each run; the instant is handed out only on the
// first call, even when it is already behind t, so a one-shot registered
// just before its time still runs. Zero means never again.
type once struct {
	at     time.Time
	handed atomic.Bool
}

func (o *once) Next(time.Time) time.Time {
	if o.handed.Swap(true) {
		return time.Time{}
	}
	return o.at
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
