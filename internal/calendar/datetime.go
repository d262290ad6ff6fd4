package calendar

import "time"

// DateTime is a point in time decomposed into the calendar fields a clause
// can restrict. Month and Weekday are 0-based, Day is 1-based.
type DateTime struct {
	Year        int
	Month       int
	Day         int
	Weekday     int
	WeekOfMonth int
	WeekOfYear  int
	DayOfYear   int
	Hour        int
	Minute      int
	Second      int

	LastWeekOfMonth bool
}

// NewDateTime decomposes t in its own location.
//
// WeekOfYear is the ISO 8601 week number when the ISO year equals the
// calendar year. Early-January days that still belong to the previous ISO
// year are week 0; late-December days that belong to the next ISO year are
// week 53.
func NewDateTime(t time.Time) DateTime {
	y, m, d := t.Date()
	isoYear, isoWeek := t.ISOWeek()
	woy := isoWeek
	switch {
	case isoYear < y:
		woy = 0
	case isoYear > y:
		woy = 53
	}
	return DateTime{
		Year:            y,
		Month:           int(m) - 1,
		Day:             d,
		Weekday:         int(t.Weekday()),
		WeekOfMonth:     (d - 1) / 7,
		WeekOfYear:      woy,
		DayOfYear:       t.YearDay() - 1,
		Hour:            t.Hour(),
		Minute:          t.Minute(),
		Second:          t.Second(),
		LastWeekOfMonth: d+7 > daysIn(m, y),
	}
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
