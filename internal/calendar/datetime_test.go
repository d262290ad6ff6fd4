package calendar

import (
	"testing"
	"time"
)

func TestNewDateTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   time.Time
		woy  int
		wom  int
		last bool
	}{
		{name: "iso week of previous year", in: at(2016, 1, 1, 0, 0), woy: 0, wom: 0},
		{name: "iso week 53 in own year", in: at(2015, 12, 31, 0, 0), woy: 53, wom: 4, last: true},
		{name: "iso week of next year", in: at(2019, 12, 30, 0, 0), woy: 53, wom: 4, last: true},
		{name: "second week", in: at(2015, 1, 8, 0, 0), woy: 2, wom: 1},
		{name: "february last week", in: at(2015, 2, 22, 0, 0), woy: 8, wom: 3, last: true},
		{name: "february not last", in: at(2015, 2, 21, 0, 0), woy: 8, wom: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dt := NewDateTime(tt.in)
			if dt.WeekOfYear != tt.woy {
				t.Fatalf("WeekOfYear = %d, want %d", dt.WeekOfYear, tt.woy)
			}
			if dt.WeekOfMonth != tt.wom {
				t.Fatalf("WeekOfMonth = %d, want %d", dt.WeekOfMonth, tt.wom)
			}
			if dt.LastWeekOfMonth != tt.last {
				t.Fatalf("LastWeekOfMonth = %v, want %v", dt.LastWeekOfMonth, tt.last)
			}
		})
	}
}

func TestNewDateTimeFields(t *testing.T) {
	t.Parallel()
	dt := NewDateTime(time.Date(2015, 3, 4, 5, 6, 7, 0, time.UTC))
	if dt.Year != 2015 || dt.Month != 2 || dt.Day != 4 {
		t.Fatalf("unexpected date: %+v", dt)
	}
	if dt.Weekday != int(time.Wednesday) {
		t.Fatalf("Weekday = %d", dt.Weekday)
	}
	if dt.DayOfYear != 31+28+3 {
		t.Fatalf("DayOfYear = %d", dt.DayOfYear)
	}
	if dt.Hour != 5 || dt.Minute != 6 || dt.Second != 7 {
		t.Fatalf("unexpected time: %+v", dt)
	}
}

func TestSetOperations(t *testing.T) {
	t.Parallel()
	var s Set
	if !s.Empty() || !s.Matches(17) {
		t.Fatal("empty set must match anything")
	}
	s.Add(3)
	s.Add(64) // ignored
	s.Add(-1) // ignored
	if s.Len() != 1 || !s.Has(3) || s.Has(4) || s.Matches(4) {
		t.Fatalf("unexpected set %v", s.Values())
	}
	if got := dimWeekday.span(5, 1).Values(); len(got) != 4 || got[0] != 0 || got[3] != 6 {
		t.Fatalf("span(5,1) = %v", got)
	}
	if got := dimDay.every(5, 5).Values(); len(got) != 6 || got[5] != 30 {
		t.Fatalf("every(5,5) = %v", got)
	}
	if dimHour.full().Len() != 24 {
		t.Fatal("hour dimension must have 24 values")
	}
}
