package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	weekdayAbbr = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	monthAbbr   = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	ordinalAbbr = [...]string{"1st", "2nd", "3rd", "4th", "5th"}
)

// String renders the schedule in canonical form, one clause per line.
// The output parses back into a schedule matching the same instants.
func (s *Schedule) String() string {
	if s == nil {
		return ""
	}
	lines := make([]string, 0, len(s.Clauses))
	for _, c := range s.Clauses {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// String renders one clause: overrides, hourly, weeks of year, ordinals,
// weekdays, months, days of month and finally the time of day.
func (c *Clause) String() string {
	var groups []string
	if c.Override != nil {
		groups = append(groups, c.Override.fields()...)
	}
	if c.Hourly() {
		groups = append(groups, "hourly")
	}
	if g := renderSet(c.WeeksOfYear, dimWeekOfYear, func(v int) string { return fmt.Sprintf("w%02d", v) }, true); g != "" {
		groups = append(groups, g)
	}

	if c.WeeksOfMonth != dimWeekOfMonth.full() {
		var wom []string
		if g := renderSet(c.WeeksOfMonth, dimWeekOfMonth, func(v int) string { return ordinalAbbr[v] }, false); g != "" {
			wom = append(wom, g)
		}
		if c.LastWeek {
			wom = append(wom, "last")
		}
		if len(wom) > 0 {
			groups = append(groups, strings.Join(wom, ", "))
		}
	}

	if g := renderSet(c.Weekdays, dimWeekday, func(v int) string { return weekdayAbbr[v] }, false); g != "" {
		groups = append(groups, g)
	}
	if g := renderSet(c.Months, dimMonth, func(v int) string { return monthAbbr[v] }, false); g != "" {
		groups = append(groups, g)
	}
	if g := renderSet(c.Days, dimDay, strconv.Itoa, true); g != "" {
		groups = append(groups, g)
	}

	groups = append(groups, fmt.Sprintf("at %02d:%02d", c.Hour(), c.Minute))
	return strings.Join(groups, " ")
}

func (o *RunOverride) fields() []string {
	var out []string
	add := func(k, v string) {
		if v != "" {
			out = append(out, k+"="+v)
		}
	}
	add("Level", o.Level)
	add("Pool", o.Pool)
	add("FullPool", o.FullPool)
	add("IncrementalPool", o.IncrementalPool)
	add("DifferentialPool", o.DifferentialPool)
	add("NextPool", o.NextPool)
	add("Storage", o.Storage)
	add("Messages", o.Messages)
	if o.Priority > 0 {
		add("Priority", strconv.Itoa(o.Priority))
	}
	if o.SpoolData != nil {
		add("SpoolData", yesNo(*o.SpoolData))
	}
	if o.Accurate != nil {
		add("Accurate", yesNo(*o.Accurate))
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// renderSet compresses runs of three or more consecutive values into
// "a-b". With steps allowed, a progression that runs up to the end of the
// dimension renders as "start/step".
func renderSet(s Set, d dimension, name func(int) string, steps bool) string {
	if s.Empty() || s == d.full() {
		return ""
	}
	vals := s.Values()

	if steps && len(vals) >= 3 {
		step := vals[1] - vals[0]
		prog := step > 1
		for i := 2; prog && i < len(vals); i++ {
			prog = vals[i]-vals[i-1] == step
		}
		if prog && vals[len(vals)-1]+step > d.max {
			return name(vals[0]) + "/" + name(step)
		}
	}

	var parts []string
	for i := 0; i < len(vals); {
		j := i
		for j+1 < len(vals) && vals[j+1] == vals[j]+1 {
			j++
		}
		switch {
		case j-i >= 2:
			parts = append(parts, name(vals[i])+"-"+name(vals[j]))
		case j == i+1:
			parts = append(parts, name(vals[i]), name(vals[j]))
		default:
			parts = append(parts, name(vals[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
