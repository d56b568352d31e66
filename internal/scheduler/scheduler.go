package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled slot.
type TickFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour. A non-empty Cron overrides Interval.
type Options struct {
	Interval     time.Duration
	Cron         string
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives periodic refresh cycles.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	now      func() time.Time
	logger   zerolog.Logger
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "scheduler").Logger(),
	}

	if opts.Cron != "" {
		schedule, err := cronParser.Parse(opts.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron %q: %w", opts.Cron, err)
		}
		s.schedule = schedule
		return s, nil
	}
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	return s, nil
}

// Run blocks, invoking tick at each slot until ctx is cancelled. Tick errors are logged.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.Next(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.Next(s.now())
			delay = next.Sub(s.now())
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_slot", next).Msg("waiting for next slot")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		slot := s.SlotStart(next)
		s.logger.Info().Time("slot", slot).Msg("executing scheduled tick")

		if err := tick(ctx, slot); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("tick execution failed")
		}

		next = s.Next(next)
	}
}

// Next returns the first slot strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	if s.schedule != nil {
		return s.schedule.Next(now)
	}
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

// SlotStart normalises a firing time to the slot it represents.
func (s *Scheduler) SlotStart(t time.Time) time.Time {
	if s.schedule != nil || !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
