// Package scheduler fires registered tasks on their cadences. A short
// poll tick checks due times so fractional-hour cadences stay accurate
// without one timer per task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultPollInterval = 500 * time.Millisecond

// Entry is a named task fired on a fixed interval.
type Entry struct {
	Name     string
	Interval time.Duration
	Fire     func(ctx context.Context)
}

type Config struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	PollInterval time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	return nil
}

type Scheduler struct {
	cfg     *Config
	log     *slog.Logger
	entries []*entry
}

type entry struct {
	Entry
	next time.Time
}

func New(cfg *Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, log: cfg.Logger}, nil
}

// Add registers a task. Must be called before Run.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return errors.New("entry name is required")
	}
	if e.Interval <= 0 {
		return fmt.Errorf("entry %s: interval must be greater than 0", e.Name)
	}
	if e.Fire == nil {
		return fmt.Errorf("entry %s: fire func is required", e.Name)
	}
	s.entries = append(s.entries, &entry{Entry: e})
	return nil
}

// Run fires every entry once immediately, then polls for due entries
// until the context is cancelled. Entries fire synchronously on the
// scheduler goroutine in registration order, so a slow fire delays the
// following schedule checks by its duration.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.cfg.Clock.Now()
	for _, e := range s.entries {
		e.next = now
	}

	s.check(ctx)

	ticker := s.cfg.Clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.check(ctx)
		}
	}
}

// check fires every due entry. A missed cycle is not backfilled: one
// overdue entry fires once and its next due time is measured from now.
func (s *Scheduler) check(ctx context.Context) {
	for _, e := range s.entries {
		if ctx.Err() != nil {
			return
		}
		now := s.cfg.Clock.Now()
		if now.Before(e.next) {
			continue
		}
		e.next = now.Add(e.Interval)
		e.Fire(ctx)
	}
}
