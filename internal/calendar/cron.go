package calendar

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronStar marks a field written as "*" or "?" in robfig's bit layout.
const cronStar = 1 << 63

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// parseCron imports a five-field cron expression (or a descriptor such as
// "@daily") as one or more clauses.
//
// A clause holds a single hour, so an expression restricted to several
// hours becomes one clause per hour. When both day of month and day of
// week are restricted cron fires on either, which takes two clauses.
func parseCron(expr string, ov *RunOverride, idx int) ([]*Clause, error) {
	perr := func(msg string) error { return &ParseError{Clause: idx, Token: expr, Message: msg} }

	if strings.TrimSpace(expr) == "" {
		return nil, perr("missing cron expression")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, perr(err.Error())
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, perr("interval expressions are not supported")
	}
	if spec.Location != time.Local {
		return nil, perr("time zone prefix is not supported")
	}

	minutes := Set(spec.Minute &^ cronStar).Values()
	if len(minutes) != 1 {
		return nil, perr("minute field must be a single value")
	}

	months := normalize(Set((spec.Month&^cronStar)>>1), dimMonth)
	dom := normalize(Set(spec.Dom&^cronStar), dimDay)
	dow := normalize(Set(spec.Dow&^cronStar), dimWeekday)
	hours := Set(spec.Hour &^ cronStar)

	type days struct{ dom, dow Set }
	var variants []days
	if spec.Dom&cronStar == 0 && spec.Dow&cronStar == 0 {
		variants = []days{{dom: dom}, {dow: dow}}
	} else {
		variants = []days{{dom: dom, dow: dow}}
	}

	var hourSets []Set
	if hours == dimHour.full() {
		hourSets = []Set{hours}
	} else {
		for _, h := range hours.Values() {
			var one Set
			one.Add(h)
			hourSets = append(hourSets, one)
		}
	}

	out := make([]*Clause, 0, len(variants)*len(hourSets))
	for _, v := range variants {
		for _, hs := range hourSets {
			out = append(out, &Clause{
				Hours:    hs,
				Days:     v.dom,
				Months:   months,
				Weekdays: v.dow,
				Minute:   minutes[0],
				Override: ov,
			})
		}
	}
	return out, nil
}

// normalize maps a full set to the empty one; both match anything but
// only the empty form renders without a value list.
func normalize(s Set, d dimension) Set {
	if s == d.full() {
		return 0
	}
	return s
}
