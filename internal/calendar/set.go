package calendar

import "math/bits"

// Set is a bitfield of accepted values for one calendar dimension.
// The zero value is empty, which matches any value.
type Set uint64

func (s Set) Has(v int) bool { return v >= 0 && v < 64 && s&(1<<uint(v)) != 0 }

func (s *Set) Add(v int) {
	if v >= 0 && v < 64 {
		*s |= 1 << uint(v)
	}
}

func (s Set) Empty() bool { return s == 0 }

func (s Set) Len() int { return bits.OnesCount64(uint64(s)) }

// Matches reports whether v is accepted; an empty set accepts everything.
func (s Set) Matches(v int) bool { return s == 0 || s.Has(v) }

// Values returns the members in ascending order.
func (s Set) Values() []int {
	out := make([]int, 0, s.Len())
	for v := s; v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(uint64(v)))
	}
	return out
}

// dimension describes the value domain of one calendar field.
type dimension struct {
	name     string
	min, max int
}

var (
	dimHour        = dimension{name: "hour", min: 0, max: 23}
	dimDay         = dimension{name: "day of month", min: 1, max: 31}
	dimMonth       = dimension{name: "month", min: 0, max: 11}
	dimWeekday     = dimension{name: "weekday", min: 0, max: 6}
	dimWeekOfMonth = dimension{name: "week of month", min: 0, max: 4}
	dimWeekOfYear  = dimension{name: "week of year", min: 0, max: 53}
)

func (d dimension) contains(v int) bool { return v >= d.min && v <= d.max }

func (d dimension) full() Set {
	var s Set
	for v := d.min; v <= d.max; v++ {
		s.Add(v)
	}
	return s
}

// span returns the values from..to inclusive, wrapping past max back to min
// when from > to ("fri-mon", "dec-feb", "20-10").
func (d dimension) span(from, to int) Set {
	var s Set
	for v := from; ; {
		s.Add(v)
		if v == to {
			break
		}
		v++
		if v > d.max {
			v = d.min
		}
	}
	return s
}

// every returns start, start+step, ... up to max.
func (d dimension) every(start, step int) Set {
	var s Set
	for v := start; v <= d.max; v += step {
		s.Add(v)
	}
	return s
}
