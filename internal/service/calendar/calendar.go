// Package calendar answers NYSE session questions: whether the market is
// open, the exchange-local date, and time remaining until an option expires.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	DateLayout = "2006-01-02"
	Timezone   = "America/New_York"
)

// Session is a single trading window in exchange-local time.
type Session struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// RegularSession is the NYSE core session.
var RegularSession = Session{OpenHour: 9, OpenMinute: 30, CloseHour: 16}

// NYSE implements repository.Calendar for US listed options.
type NYSE struct {
	loc     *time.Location
	session Session
}

func New() (*NYSE, error) {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", Timezone, err)
	}
	return &NYSE{loc: loc, session: RegularSession}, nil
}

// Location returns the exchange time zone.
func (c *NYSE) Location() *time.Location { return c.loc }

func (c *NYSE) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.IsTradingDay(local) {
		return false
	}
	open, close := c.sessionBounds(local)
	return !local.Before(open) && local.Before(close)
}

// IsTradingDay reports whether the exchange-local date of t is a weekday
// that is not a market holiday.
func (c *NYSE) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	y, m, d := local.Date()
	for _, h := range Holidays(y) {
		if h.Month() == m && h.Day() == d {
			return false
		}
	}
	return true
}

// Today returns the exchange-local date of t.
func (c *NYSE) Today(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// ExpiresAt returns the instant an option expiring on the given date stops
// trading: the session close on that date.
func (c *NYSE) ExpiresAt(expiration string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, expiration, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration %q: %w", expiration, err)
	}
	_, close := c.sessionBounds(d)
	return close, nil
}

// SecondsUntil returns wall-clock seconds from t until expiration, floored at 0.
func (c *NYSE) SecondsUntil(expiration string, t time.Time) (int64, error) {
	exp, err := c.ExpiresAt(expiration)
	if err != nil {
		return 0, err
	}
	if !exp.After(t) {
		return 0, nil
	}
	return int64(exp.Sub(t) / time.Second), nil
}

// MarketSecondsUntil returns the number of seconds of open trading sessions
// between t and expiration.
func (c *NYSE) MarketSecondsUntil(expiration string, t time.Time) (int64, error) {
	exp, err := c.ExpiresAt(expiration)
	if err != nil {
		return 0, err
	}
	if !exp.After(t) {
		return 0, nil
	}

	var total time.Duration
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for !day.After(exp) {
		if c.IsTradingDay(day) {
			open, close := c.sessionBounds(day)
			from := maxTime(open, t)
			to := minTime(close, exp)
			if to.After(from) {
				total += to.Sub(from)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return int64(total / time.Second), nil
}

func (c *NYSE) sessionBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(c.loc)
	y, m, d := local.Date()
	open := time.Date(y, m, d, c.session.OpenHour, c.session.OpenMinute, 0, 0, c.loc)
	close := time.Date(y, m, d, c.session.CloseHour, c.session.CloseMinute, 0, 0, c.loc)
	return open, close
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
