// Package market answers trading-calendar questions for the NYSE.
package market

import (
	"time"

	"github.com/scmhub/calendar"
)

const (
	DateLayout = "2006-01-02"
	Timezone   = "America/New_York"
)

// Calendar checks trading days and regular session hours.
type Calendar struct {
	location *time.Location
	nyse     *calendar.Calendar
	open     time.Duration
	close    time.Duration
}

// NewCalendar returns an NYSE calendar evaluated in timezone. An unknown
// timezone falls back to UTC.
func NewCalendar(timezone string) *Calendar {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Calendar{
		location: loc,
		nyse:     calendar.XNYS(),
		open:     9*time.Hour + 30*time.Minute,
		close:    16 * time.Hour,
	}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.location
}

// TodayDate returns today's date in YYYY-MM-DD format in the calendar's timezone.
func (c *Calendar) TodayDate() string {
	return time.Now().In(c.location).Format(DateLayout)
}

// IsMarketDay checks if the given date is a trading day (not weekend/holiday).
func (c *Calendar) IsMarketDay(dateStr string) bool {
	// Parse as noon so the date matches regardless of offset.
	t, err := time.ParseInLocation("2006-01-02 15:04:05", dateStr+" 12:00:00", c.location)
	if err != nil {
		return false
	}
	return c.nyse.IsBusinessDay(t)
}

// IsTradingDay reports whether t falls on a trading day.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return c.IsMarketDay(t.In(c.location).Format(DateLayout))
}

// InSession reports whether t is a trading day between the regular open and
// close.
func (c *Calendar) InSession(t time.Time) bool {
	local := t.In(c.location)
	if !c.IsTradingDay(local) {
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	offset := local.Sub(midnight)
	return offset >= c.open && offset < c.close
}
