package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/vetsub/internal/config"
)

// DateLayout is the wire format for civil dates.
const DateLayout = "2006-01-02"

// Calendar turns instants into civil dates of the business timezone.
//
// A civil date is represented as a time.Time at midnight UTC so that it can be
// stored, compared and formatted without carrying a zone around. The business
// timezone is only used to decide which calendar day an instant falls on.
type Calendar struct {
	clock Clock
	loc   *time.Location
}

func NewCalendar(c Clock, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: c, loc: loc}
}

// NewCalendarFromConfig resolves BUSINESS_TIMEZONE.
func NewCalendarFromConfig(c Clock, cfg config.Config) (*Calendar, error) {
	name := strings.TrimSpace(cfg.BusinessTimezone)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", name, err)
	}
	return NewCalendar(c, loc), nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in UTC.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().UTC()
}

// Today returns the current business day.
func (c *Calendar) Today() time.Time {
	return c.DateOf(c.clock.Now())
}

// DateOf returns the business day an instant falls on.
func (c *Calendar) DateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// NextRun returns the next instant at hh:mm business time strictly after now.
func (c *Calendar) NextRun(now time.Time, hour, minute int) time.Time {
	local := now.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, c.loc)
	}
	return next.UTC()
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ToDate drops the time of day, keeping the calendar fields as written.
func ToDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// AddDays shifts a civil date.
func AddDays(d time.Time, days int) time.Time {
	return Date(d.Year(), d.Month(), d.Day()+days)
}

// DaysBetween counts calendar days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(ToDate(b).Sub(ToDate(a)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return ToDate(t), nil
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(value string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}
