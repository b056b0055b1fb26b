package main

import (
	"time"

	"github.com/dgnsrekt/tastygex/internal/market"
)

// Scheduler decides when the next collection is due: every interval while
// the regular session is open.
type Scheduler struct {
	calendar *market.Calendar
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a scheduler for the given interval and timezone.
func NewScheduler(interval time.Duration, timezone string) *Scheduler {
	return &Scheduler{
		calendar: market.NewCalendar(timezone),
		interval: interval,
		now:      time.Now,
	}
}

// Due reports whether a run should start given the last successful run.
func (s *Scheduler) Due(last time.Time) bool {
	now := s.now()
	if !s.calendar.InSession(now) {
		return false
	}
	return last.IsZero() || now.Sub(last) >= s.interval
}

// InSession reports whether the market is open now.
func (s *Scheduler) InSession() bool {
	return s.calendar.InSession(s.now())
}

// TodayDate returns today's date in the scheduler's timezone.
func (s *Scheduler) TodayDate() string {
	return s.now().In(s.calendar.Location()).Format(market.DateLayout)
}

// Location returns the scheduler's timezone location
func (s *Scheduler) Location() *time.Location {
	return s.calendar.Location()
}
