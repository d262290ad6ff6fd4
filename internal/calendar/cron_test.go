package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronImport(t *testing.T) {
	t.Parallel()

	s := MustParse("cron 30 2 * * 1-5")
	require.Len(t, s.Clauses, 1)
	c := s.Clauses[0]
	assert.Equal(t, []int{1, 2, 3, 4, 5}, c.Weekdays.Values())
	assert.Equal(t, 2, c.Hour())
	assert.Equal(t, 30, c.Minute)
	assert.True(t, c.Months.Empty())
	assert.True(t, c.Days.Empty())
}

func TestCronDayOfMonthOrDayOfWeek(t *testing.T) {
	t.Parallel()
	s := MustParse("cron 0 1,13 15 * mon")
	assert.Len(t, s.Clauses, 4)

	assert.True(t, s.Matches(at(2015, 1, 15, 13, 0))) // Thursday the 15th
	assert.True(t, s.Matches(at(2015, 1, 5, 1, 0)))   // Monday
	assert.False(t, s.Matches(at(2015, 1, 6, 1, 0)))  // Tuesday the 6th
	assert.False(t, s.Matches(at(2015, 1, 15, 2, 0))) // wrong hour
}

func TestCronMonthsAreShifted(t *testing.T) {
	t.Parallel()
	s := MustParse("cron 0 0 1 jan,jul *")
	require.Len(t, s.Clauses, 1)
	assert.Equal(t, []int{0, 6}, s.Clauses[0].Months.Values())
	assert.True(t, s.Matches(at(2015, 7, 1, 0, 0)))
	assert.False(t, s.Matches(at(2015, 8, 1, 0, 0)))
}

func TestCronHourlyAndDescriptors(t *testing.T) {
	t.Parallel()

	s := MustParse("cron 7 * * * *")
	require.Len(t, s.Clauses, 1)
	assert.True(t, s.Clauses[0].Hourly())
	assert.Equal(t, "hourly at 00:07", s.String())

	d := MustParse("cron @daily")
	require.Len(t, d.Clauses, 1)
	assert.Equal(t, "at 00:00", d.String())
}

func TestCronKeepsOverrides(t *testing.T) {
	t.Parallel()
	s := MustParse("Level=Full Priority=3 cron 5 4 * * sun")
	require.Len(t, s.Clauses, 1)
	require.NotNil(t, s.Clauses[0].Override)
	assert.Equal(t, "Full", s.Clauses[0].Override.Level)
	assert.Equal(t, 3, s.Clauses[0].Priority())
}

func TestCronErrors(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"cron",
		"cron 0 0 * *",
		"cron */15 * * * *",
		"cron @every 5m",
		"cron CRON_TZ=UTC 0 0 * * *",
		"mon cron 0 0 * * *",
		"cron 0 25 * * *",
	} {
		_, _, err := Parse(text)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe, text)
	}
}
