// Package calendar buckets instants into local calendar days.
//
// A Day is the half-open interval [local midnight, next local midnight) in a fixed location.
// Services compute today once per request and pass the Day value down the call chain.
package calendar

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day identifies one calendar day in a location. The zero value is not a valid day.
type Day struct {
	start time.Time
}

// DayOf returns the calendar day containing t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	lt := t.In(loc)
	return Day{start: time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)}
}

// ParseDay parses a YYYY-MM-DD string as a day in loc.
func ParseDay(s string, loc *time.Location) (Day, error) {
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{start: t}, nil
}

// Start is local midnight opening the day. It is the ledger's dedup key.
func (d Day) Start() time.Time { return d.start }

// End is the next local midnight, exclusive. AddDate keeps this right across DST shifts.
func (d Day) End() time.Time { return d.start.AddDate(0, 0, 1) }

func (d Day) Next() Day { return Day{start: d.End()} }

func (d Day) Prev() Day { return Day{start: d.start.AddDate(0, 0, -1)} }

func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.start) && t.Before(d.End())
}

func (d Day) IsZero() bool { return d.start.IsZero() }

func (d Day) Equal(o Day) bool { return d.start.Equal(o.start) }

func (d Day) String() string { return d.start.Format(dayLayout) }

// Clock reads the current time in the service's fixed time zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a wall clock in loc.
func NewClock(loc *time.Location) *Clock {
	return &Clock{loc: loc, now: time.Now}
}

// NewFixedClock returns a clock whose Now is supplied by now. Used by tests and tooling.
func NewFixedClock(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now}
}

// LoadClock resolves the IANA zone name and returns a clock in it.
func LoadClock(zone string) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return NewClock(loc), nil
}

func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

func (c *Clock) Today() Day { return DayOf(c.now(), c.loc) }

// DayOf buckets t using the clock's location.
func (c *Clock) DayOf(t time.Time) Day { return DayOf(t, c.loc) }

// Parse parses a YYYY-MM-DD string in the clock's location.
func (c *Clock) Parse(s string) (Day, error) { return ParseDay(s, c.loc) }
