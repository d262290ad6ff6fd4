package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
	}{
		{text: "", want: "at 00:00"},
		{text: "daily at 2:00", want: "at 02:00"},
		{text: "hourly", want: "hourly at 00:00"},
		{text: "hourly at 5:20", want: "hourly at 00:20"},
		{text: "Mon-Fri at 23:10", want: "mon-fri at 23:10"},
		{text: "fri-mon", want: "sun, mon, fri, sat at 00:00"},
		{text: "level=full 1st sun at 23:05", want: "Level=Full 1st sun at 23:05"},
		{text: "last fri at 1:00", want: "last fri at 01:00"},
		{text: "2nd-4th, last wed", want: "2nd-4th, last wed at 00:00"},
		{text: "1/2", want: "1/2 at 00:00"},
		{text: "5/5", want: "5/5 at 00:00"},
		{text: "w00/w02", want: "w00/w02 at 00:00"},
		{text: "w01-w10", want: "w01-w10 at 00:00"},
		{text: "1, 2, 15", want: "1, 2, 15 at 00:00"},
		{text: "mar-may 1", want: "mar-may 1 at 00:00"},
		{text: "jan-dec mon-sun", want: "at 00:00"},
		{text: "priority=3 accurate=yes at 1:00pm", want: "Priority=3 Accurate=yes at 13:00"},
		{text: "mon; tue at 1:00", want: "mon at 00:00\ntue at 01:00"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MustParse(tt.text).String())
		})
	}
}

func TestRoundTripMatchesSameInstants(t *testing.T) {
	t.Parallel()
	texts := []string{
		"",
		"hourly",
		"hourly at :45",
		"Level=Full 1st sun at 23:05; Level=Differential 2nd-5th sun at 23:05; Level=Incremental mon-sat at 23:05",
		"last fri at 4:00",
		"1st, 3rd, last sat",
		"fri-mon at 6:30pm",
		"dec-feb 28-2",
		"1/3 at 3:00",
		"w00/w02 mon at 1:00",
		"w50-w02 at 2:00",
		"on jun-aug 15",
		"cron 0 1,13 15 * mon",
		"pool=Offsite cron 30 2 * * 1-5",
	}
	start := at(2015, 1, 1, 0, 0)
	end := at(2016, 1, 20, 0, 0)

	for _, text := range texts {
		text := text
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			first, _, err := Parse(text)
			require.NoError(t, err)
			second, _, err := Parse(first.String())
			require.NoError(t, err, "canonical form %q", first.String())
			assert.Equal(t, first.MatchingTimes(start, end), second.MatchingTimes(start, end))
			assert.Equal(t, first.String(), second.String())
		})
	}
}
