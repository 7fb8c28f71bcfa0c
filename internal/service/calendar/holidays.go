package calendar

import "time"

// Holidays returns the full-day NYSE closures for a year, as UTC midnight
// dates.
func Holidays(year int) []time.Time {
	days := make([]time.Time, 0, 10)

	// New Year's on a Saturday is not observed on the prior Friday.
	if ny := date(year, time.January, 1); ny.Weekday() != time.Saturday {
		days = append(days, observe(ny))
	}
	days = append(days,
		nthWeekday(year, time.January, time.Monday, 3),  // MLK Day
		nthWeekday(year, time.February, time.Monday, 3), // Presidents Day
		easter(year).AddDate(0, 0, -2),                  // Good Friday
		lastWeekday(year, time.May, time.Monday),        // Memorial Day
	)
	if year >= 2022 {
		days = append(days, observe(date(year, time.June, 19)))
	}
	days = append(days,
		observe(date(year, time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		observe(date(year, time.December, 25)),
	)
	return days
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := int(weekday - d.Weekday())
	if offset < 0 {
		offset += 7
	}
	return d.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := date(year, month+1, 0)
	offset := int(d.Weekday() - weekday)
	if offset < 0 {
		offset += 7
	}
	return d.AddDate(0, 0, -offset)
}

// observe moves a weekend holiday to the adjacent weekday.
func observe(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}
