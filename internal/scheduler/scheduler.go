// Package scheduler runs the periodic jobs: subscription refresh and the
// weekly indicator rollover.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"keycal/internal/calendar"
	"keycal/internal/goals"
	"keycal/internal/ics"
	appLog "keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/observability"
	"keycal/internal/store"
)

// Scheduler owns a cron runner and the state of the subscriptions it
// refreshes.
type Scheduler struct {
	store   store.Store
	fetcher *ics.Fetcher
	subs    []ics.Source
	loc     *time.Location
	now     func() time.Time

	cron *cron.Cron

	mu     sync.Mutex
	loaded map[string]bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(st store.Store, fetcher *ics.Fetcher, subs []ics.Source, loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		store:   st,
		fetcher: fetcher,
		subs:    subs,
		loc:     loc,
		now:     time.Now,
		loaded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules both jobs and starts the runner. Jobs run with ctx and
// the runner stops when ctx is cancelled. An empty spec disables a job.
func (s *Scheduler) Start(ctx context.Context, refreshSpec, rolloverSpec string) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	if refreshSpec != "" && len(s.subs) > 0 {
		if _, err := c.AddFunc(refreshSpec, func() { s.RefreshAll(ctx) }); err != nil {
			return fmt.Errorf("refresh schedule %q: %w", refreshSpec, err)
		}
	}
	if rolloverSpec != "" {
		if _, err := c.AddFunc(rolloverSpec, func() {
			if err := s.Rollover(ctx); err != nil {
				appLog.Error("rollover failed", err)
			}
		}); err != nil {
			return fmt.Errorf("rollover schedule %q: %w", rolloverSpec, err)
		}
	}

	s.cron = c
	c.Start()
	appLog.Info("scheduler started", "refresh", refreshSpec, "rollover", rolloverSpec, "subscriptions", len(s.subs))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("scheduler stopped")
	}()
	return nil
}

// RefreshAll refreshes every subscription. Failures are logged and
// returned joined; one failing source does not stop the others.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, src := range s.subs {
		if _, err := s.Refresh(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Refresh fetches one subscription and replaces its events in the store.
// A 304 for a source already loaded in this process is a no-op.
func (s *Scheduler) Refresh(ctx context.Context, src ics.Source) (int, error) {
	res, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		observability.RecordSubscriptionRefresh(src.ID, "failed", 0)
		appLog.Error("subscription fetch failed", err, "id", src.ID, "user", src.UserID)
		return 0, err
	}

	s.mu.Lock()
	unchanged := res.NotModified && s.loaded[src.ID]
	s.mu.Unlock()
	if unchanged {
		observability.RecordSubscriptionRefresh(src.ID, "unchanged", 0)
		return 0, nil
	}

	drafts, err := ics.Parse(src, res.Body, s.loc)
	if err != nil {
		observability.RecordSubscriptionRefresh(src.ID, "failed", 0)
		return 0, fmt.Errorf("subscription %s: %w", src.ID, err)
	}
	n, err := s.store.ReplaceSource(ctx, src.UserID, src.ID, drafts)
	if err != nil {
		observability.RecordSubscriptionRefresh(src.ID, "failed", 0)
		appLog.Error("subscription store failed", err, "id", src.ID, "user", src.UserID)
		return 0, fmt.Errorf("subscription %s: %w", src.ID, err)
	}

	s.mu.Lock()
	s.loaded[src.ID] = true
	s.mu.Unlock()

	observability.RecordSubscriptionRefresh(src.ID, "updated", n)
	appLog.Info("subscription refreshed", "id", src.ID, "user", src.UserID, "events", n, "from_cache", res.FromCache)
	return n, nil
}

// Rollover publishes every user's indicator totals for the Monday–Sunday
// week that ended before now.
func (s *Scheduler) Rollover(ctx context.Context) error {
	now := s.now().In(s.loc)
	ref := calendar.WeekStart(now).AddDate(0, 0, -7)
	return s.publishWeek(ctx, ref, now)
}

func (s *Scheduler) publishWeek(ctx context.Context, ref, now time.Time) error {
	users, err := s.store.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("rollover: list users: %w", err)
	}

	start := calendar.WeekStart(ref)
	window := model.DateRange{Start: start, End: start.AddDate(0, 0, 7)}

	var errs []error
	for _, user := range users {
		indicators, err := s.store.ListIndicators(ctx, user)
		if err != nil {
			errs = append(errs, fmt.Errorf("rollover %s: %w", user, err))
			continue
		}
		if len(indicators) == 0 {
			continue
		}
		events, err := s.store.ListEvents(ctx, user, window)
		if err != nil {
			errs = append(errs, fmt.Errorf("rollover %s: %w", user, err))
			continue
		}

		for _, p := range goals.Progress(indicators, events, ref) {
			actual := p.ActualHours
			if p.MeasurementType == model.MeasureFrequency {
				actual = float64(p.ActualFrequency)
			}
			observability.RecordIndicatorWeek(user, string(p.Category), string(p.MeasurementType), actual, p.Goal())
			appLog.Info("indicator week closed",
				"user", user,
				"category", p.Category,
				"measurement", p.MeasurementType,
				"actual", actual,
				"goal", p.Goal(),
				"percent", p.Percent(),
				"week_start", p.WeekStart.Format(time.DateOnly),
			)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	observability.RecordRollover(now)
	return nil
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
