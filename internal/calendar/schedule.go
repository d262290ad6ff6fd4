package calendar

import (
	"sort"
	"time"
)

// RunOverride carries per-clause job parameters layered onto the job's
// defaults when the clause fires. The scheduler only interprets Priority.
type RunOverride struct {
	Level            string
	Pool             string
	FullPool         string
	IncrementalPool  string
	DifferentialPool string
	NextPool         string
	Storage          string
	Messages         string
	Priority         int // 0 = unset
	SpoolData        *bool
	Accurate         *bool
}

// Clause is one alternative rule of a Schedule.
//
// Every parsed clause has a non-empty Hours set: either the single hour of
// its "at" time (00 by default) or all hours for "hourly". Empty date sets
// match any value.
type Clause struct {
	Hours        Set
	Days         Set
	Months       Set
	Weekdays     Set
	WeeksOfMonth Set
	WeeksOfYear  Set

	Minute   int
	LastWeek bool

	Override *RunOverride
}

// Hourly reports whether the clause fires in every hour of a matching day.
func (c *Clause) Hourly() bool {
	return c.Hours.Empty() || c.Hours == dimHour.full()
}

// Hour returns the clause's hour of day, or 0 for hourly clauses.
func (c *Clause) Hour() int {
	if c.Hourly() {
		return 0
	}
	return c.Hours.Values()[0]
}

// Priority returns the override priority, or 0 when unset.
func (c *Clause) Priority() int {
	if c == nil || c.Override == nil {
		return 0
	}
	return c.Override.Priority
}

// MatchesDay evaluates the date dimensions only.
func (c *Clause) MatchesDay(dt DateTime) bool {
	if !c.Days.Matches(dt.Day) ||
		!c.Months.Matches(dt.Month) ||
		!c.Weekdays.Matches(dt.Weekday) ||
		!c.WeeksOfYear.Matches(dt.WeekOfYear) {
		return false
	}
	if c.WeeksOfMonth.Has(dt.WeekOfMonth) {
		return true
	}
	if c.LastWeek {
		return dt.LastWeekOfMonth
	}
	return c.WeeksOfMonth.Empty()
}

// Matches evaluates the date dimensions, the hour and the minute.
func (c *Clause) Matches(dt DateTime) bool {
	return c.MatchesDay(dt) && c.Hours.Matches(dt.Hour) && dt.Minute == c.Minute
}

// Schedule is a named, ordered list of clauses.
type Schedule struct {
	Name    string
	Clauses []*Clause
}

// Matches reports whether any clause matches t, evaluated in t's location.
func (s *Schedule) Matches(t time.Time) bool {
	if s == nil {
		return false
	}
	dt := NewDateTime(t)
	for _, c := range s.Clauses {
		if c.Matches(dt) {
			return true
		}
	}
	return false
}

// Occurrence is one firing of one clause.
type Occurrence struct {
	Time   time.Time
	Clause int
}

// Occurrences enumerates every firing in [start, end) in start's location,
// ordered by time and then by clause index. Two clauses firing at the same
// instant both appear.
func (s *Schedule) Occurrences(start, end time.Time) []Occurrence {
	if s == nil || len(s.Clauses) == 0 || !end.After(start) {
		return nil
	}
	loc := start.Location()
	y, m, d := start.Date()

	var out []Occurrence
	matchDay := make([]bool, len(s.Clauses))
	for i := 0; ; i++ {
		if !time.Date(y, m, d+i, 0, 0, 0, 0, loc).Before(end) {
			break
		}
		// Noon is never skipped by a DST transition.
		dt := NewDateTime(time.Date(y, m, d+i, 12, 0, 0, 0, loc))
		hit := false
		for ci, c := range s.Clauses {
			matchDay[ci] = c.MatchesDay(dt)
			hit = hit || matchDay[ci]
		}
		if !hit {
			continue
		}
		for h := 0; h < 24; h++ {
			for ci, c := range s.Clauses {
				if !matchDay[ci] || !c.Hours.Matches(h) {
					continue
				}
				t := time.Date(y, m, d+i, h, c.Minute, 0, 0, loc)
				if t.Hour() != h {
					// Wall-clock hour does not exist (spring forward).
					continue
				}
				if t.Before(start) || !t.Before(end) {
					continue
				}
				out = append(out, Occurrence{Time: t, Clause: ci})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// MatchingTimes returns the instants of Occurrences.
func (s *Schedule) MatchingTimes(start, end time.Time) []time.Time {
	occ := s.Occurrences(start, end)
	if len(occ) == 0 {
		return nil
	}
	out := make([]time.Time, len(occ))
	for i, o := range occ {
		out[i] = o.Time
	}
	return out
}
