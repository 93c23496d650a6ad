// Package scheduler re-ranks the configured watchlist on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/dyike/CortexAdvisor/models"
)

// Ranker is satisfied by *advisor.Engine.
type Ranker interface {
	RankSymbols(ctx context.Context, symbols []string, strategy, horizon string, n int) ([]*models.Recommendation, error)
}

// Watch is one pass over a watchlist.
type Watch struct {
	Symbols  []string
	Strategy string
	Horizon  string
}

// Source returns the ranker and watch to use for the next pass, and a
// release func called when the pass ends. It is called on every tick so
// configuration reloads are picked up.
type Source func() (Ranker, Watch, func())

type Option func(*Scheduler)

// WithResultHandler receives every completed pass.
func WithResultHandler(fn func(Watch, []*models.Recommendation)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	source   Source
	onResult func(Watch, []*models.Recommendation)

	mu    sync.Mutex
	spec  string
	entry cron.EntryID
}

func New(ctx context.Context, source Source, opts ...Option) *Scheduler {
	l := cronLogger{}
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		ctx:    ctx,
		source: source,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register schedules the watchlist pass, replacing any earlier schedule.
// spec uses the six-field format with a leading seconds field.
func (s *Scheduler) Register(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return fmt.Errorf("watch schedule is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunNow(); err != nil {
			log.Error().Err(err).Msg("watchlist pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register watch schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.spec, s.entry = spec, id
	return nil
}

// Reschedule is Register when spec differs from the current schedule. An
// invalid spec leaves the current schedule running.
func (s *Scheduler) Reschedule(spec string) error {
	s.mu.Lock()
	same := strings.TrimSpace(spec) == s.spec
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.Register(spec); err != nil {
		return err
	}
	log.Info().Str("schedule", spec).Msg("watch schedule changed")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Next reports when the first registered job fires next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow ranks the watchlist immediately.
func (s *Scheduler) RunNow() ([]*models.Recommendation, error) {
	ranker, watch, release := s.source()
	if release != nil {
		defer release()
	}
	if ranker == nil {
		return nil, fmt.Errorf("no engine available")
	}
	if len(watch.Symbols) == 0 {
		log.Info().Msg("watchlist is empty, nothing to rank")
		return nil, nil
	}

	start := time.Now()
	recs, err := ranker.RankSymbols(s.ctx, watch.Symbols, watch.Strategy, watch.Horizon, 0)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("symbols", len(watch.Symbols)).
		Int("ranked", len(recs)).
		Str("strategy", watch.Strategy).
		Dur("elapsed", time.Since(start)).
		Msg("watchlist ranked")

	if s.onResult != nil {
		s.onResult(watch, recs)
	}
	return recs, nil
}

// cronLogger routes cron's own messages into the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}
