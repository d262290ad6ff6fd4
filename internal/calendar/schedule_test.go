package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchingTimesEmptyScheduleIsDailyMidnight(t *testing.T) {
	t.Parallel()
	s := MustParse("")
	start := at(2015, 1, 1, 0, 0)
	got := s.MatchingTimes(start, start.AddDate(0, 0, 10))
	require.Len(t, got, 10)
	for i, ts := range got {
		assert.Equal(t, start.AddDate(0, 0, i), ts)
	}
}

func TestMatchingTimesJanuaryInNonLeapYear(t *testing.T) {
	t.Parallel()
	s := MustParse("jan")
	got := s.MatchingTimes(at(2015, 1, 1, 0, 0), at(2016, 1, 1, 0, 0))
	require.Len(t, got, 31)
	for _, ts := range got {
		assert.Equal(t, time.January, ts.Month())
	}
}

func TestMatchingTimesMondaysAndFridays(t *testing.T) {
	t.Parallel()
	s := MustParse("mon, fri")
	start := at(2015, 1, 1, 0, 0) // Thursday
	require.Equal(t, time.Thursday, start.Weekday())

	// The window is half-open and spans 366 calendar days, day 0 through
	// day 365. Day 365 is a Friday and counts, so the end sits just after
	// its 00:00 firing.
	end := start.AddDate(0, 0, 365).Add(time.Minute)
	got := s.MatchingTimes(start, end)
	require.Len(t, got, 105)
	for _, ts := range got {
		wd := ts.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Friday, "unexpected weekday %s", wd)
	}
}

func TestMatchingTimesHourly(t *testing.T) {
	t.Parallel()
	s := MustParse("hourly at :30")
	start := at(2015, 1, 1, 0, 0)
	got := s.MatchingTimes(start, start.Add(24*time.Hour))
	require.Len(t, got, 24)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, time.Hour, got[i].Sub(got[i-1]))
	}
}

func TestMatchingTimesHalfOpenWindow(t *testing.T) {
	t.Parallel()
	s := MustParse("at 12:00")
	start := at(2015, 1, 1, 12, 0)
	got := s.MatchingTimes(start, at(2015, 1, 3, 12, 0))
	assert.Equal(t, []time.Time{at(2015, 1, 1, 12, 0), at(2015, 1, 2, 12, 0)}, got)

	assert.Empty(t, s.MatchingTimes(start, start))
	assert.Empty(t, s.MatchingTimes(start, start.Add(-time.Hour)))
}

func TestOccurrencesKeepDuplicateClauses(t *testing.T) {
	t.Parallel()
	s := MustParse("mon at 1:00; mon-fri at 1:00")
	got := s.Occurrences(at(2015, 1, 5, 0, 0), at(2015, 1, 6, 0, 0))
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Time, got[1].Time)
	assert.Equal(t, 0, got[0].Clause)
	assert.Equal(t, 1, got[1].Clause)
}

func TestMatchingTimesSkipsMissingWallClockHour(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := MustParse("at 2:30")
	start := time.Date(2015, 3, 7, 0, 0, 0, 0, loc)
	got := s.MatchingTimes(start, start.AddDate(0, 0, 3))
	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].Day())
	assert.Equal(t, 9, got[1].Day())
}

func TestMatchesUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*3600)
	s := MustParse("at 2:00")
	ts := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, s.Matches(ts))
	assert.True(t, s.Matches(ts.In(loc)))
}

func TestNilSchedule(t *testing.T) {
	t.Parallel()
	var s *Schedule
	assert.False(t, s.Matches(at(2015, 1, 1, 0, 0)))
	assert.Nil(t, s.MatchingTimes(at(2015, 1, 1, 0, 0), at(2015, 2, 1, 0, 0)))
	assert.Equal(t, "", s.String())
}
