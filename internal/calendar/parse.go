package calendar

import (
	"strconv"
	"strings"
	"unicode"
)

var weekdayNames = map[string]int{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tues": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
}

var monthNames = map[string]int{
	"jan": 0, "january": 0,
	"feb": 1, "february": 1,
	"mar": 2, "march": 2,
	"apr": 3, "april": 3,
	"may": 4,
	"jun": 5, "june": 5,
	"jul": 6, "july": 6,
	"aug": 7, "august": 7,
	"sep": 8, "sept": 8, "september": 8,
	"oct": 9, "october": 9,
	"nov": 10, "november": 10,
	"dec": 11, "december": 11,
}

var ordinalNames = map[string]int{
	"1st": 0, "first": 0,
	"2nd": 1, "second": 1,
	"3rd": 2, "third": 2,
	"4th": 3, "fourth": 3,
	"5th": 4, "fifth": 4,
}

var levelNames = map[string]string{
	"full":         "Full",
	"incremental":  "Incremental",
	"differential": "Differential",
	"virtualfull":  "VirtualFull",
	"base":         "Base",
}

type tokenKind int

const (
	kindNone tokenKind = iota
	kindWeekday
	kindMonth
	kindOrdinal
	kindDay
	kindWeekOfYear
)

func (k tokenKind) dim() dimension {
	switch k {
	case kindWeekday:
		return dimWeekday
	case kindMonth:
		return dimMonth
	case kindOrdinal:
		return dimWeekOfMonth
	case kindWeekOfYear:
		return dimWeekOfYear
	default:
		return dimDay
	}
}

func classify(tok string) (tokenKind, int, bool) {
	if v, ok := weekdayNames[tok]; ok {
		return kindWeekday, v, true
	}
	if v, ok := monthNames[tok]; ok {
		return kindMonth, v, true
	}
	if v, ok := ordinalNames[tok]; ok {
		return kindOrdinal, v, true
	}
	if len(tok) > 1 && tok[0] == 'w' && allDigits(tok[1:]) {
		n, err := strconv.Atoi(tok[1:])
		return kindWeekOfYear, n, err == nil
	}
	if allDigits(tok) {
		n, err := strconv.Atoi(tok)
		return kindDay, n, err == nil
	}
	return kindNone, 0, false
}

func allDigits(s string) bool {
	if s == "" || len(s) > 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Parse parses schedule text into a Schedule.
//
// Clauses are separated by ';' or newlines. Blank text yields a single
// clause that fires every day at 00:00. Deprecated but accepted forms are
// reported as warnings; anything else that cannot be understood is a
// *ParseError and no schedule is returned.
func Parse(text string) (*Schedule, []Warning, error) {
	segments := strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' || r == '\r' })

	s := &Schedule{}
	var warns []Warning
	n := 0
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		clauses, w, err := parseClause(seg, n)
		if err != nil {
			return nil, nil, err
		}
		s.Clauses = append(s.Clauses, clauses...)
		warns = append(warns, w...)
		n++
	}
	if len(s.Clauses) == 0 {
		s.Clauses = []*Clause{defaultClause()}
	}
	return s, warns, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(text string) *Schedule {
	s, _, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

func defaultClause() *Clause {
	c := &Clause{}
	c.Hours.Add(0)
	return c
}

type clauseParser struct {
	idx int
	c   *Clause

	hour    int
	hourly  bool
	timeSet bool

	keys     map[string]bool
	warnings []Warning
}

func parseClause(text string, idx int) ([]*Clause, []Warning, error) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if strings.EqualFold(f, "cron") {
			p := &clauseParser{idx: idx, c: &Clause{}}
			for _, raw := range fields[:i] {
				if !strings.Contains(raw, "=") {
					return nil, nil, p.errorf(raw, "unexpected token before cron expression")
				}
				if err := p.override(raw); err != nil {
					return nil, nil, err
				}
			}
			clauses, err := parseCron(strings.Join(fields[i+1:], " "), p.c.Override, idx)
			return clauses, nil, err
		}
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
	p := &clauseParser{idx: idx, c: &Clause{}}
	for i := 0; i < len(tokens); i++ {
		raw := tokens[i]
		tok := strings.ToLower(raw)
		var err error
		switch {
		case strings.Contains(raw, "="):
			err = p.override(raw)
		case tok == "at":
			if i+1 >= len(tokens) {
				return nil, nil, p.errorf(raw, "missing time of day")
			}
			i++
			t := tokens[i]
			if i+1 < len(tokens) && isMeridiem(strings.ToLower(tokens[i+1])) {
				i++
				t += tokens[i]
			}
			err = p.at(t)
		case tok == "daily":
		case tok == "hourly":
			p.hourly = true
		case tok == "on":
			p.warnings = append(p.warnings, Warning{Clause: idx, Message: `keyword "on" is deprecated and ignored`})
		case tok == "last":
			p.c.LastWeek = true
		default:
			err = p.calendar(tok)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if p.hourly {
		p.c.Hours = dimHour.full()
	} else {
		p.c.Hours.Add(p.hour)
	}
	return []*Clause{p.c}, p.warnings, nil
}

func (p *clauseParser) errorf(tok, msg string) error {
	return &ParseError{Clause: p.idx, Token: tok, Message: msg}
}

func (p *clauseParser) set(k tokenKind) *Set {
	switch k {
	case kindWeekday:
		return &p.c.Weekdays
	case kindMonth:
		return &p.c.Months
	case kindOrdinal:
		return &p.c.WeeksOfMonth
	case kindWeekOfYear:
		return &p.c.WeeksOfYear
	default:
		return &p.c.Days
	}
}

func (p *clauseParser) calendar(tok string) error {
	if a, b, ok := strings.Cut(tok, "/"); ok {
		return p.step(tok, a, b)
	}
	if a, b, ok := strings.Cut(tok, "-"); ok && a != "" && b != "" {
		return p.span(tok, a, b)
	}
	kind, v, ok := classify(tok)
	if !ok {
		return p.errorf(tok, "unknown token")
	}
	d := kind.dim()
	if !d.contains(v) {
		return p.errorf(tok, d.name+" out of range")
	}
	p.set(kind).Add(v)
	return nil
}

func (p *clauseParser) span(tok, a, b string) error {
	ka, va, okA := classify(a)
	kb, vb, okB := classify(b)
	if !okA || !okB {
		return p.errorf(tok, "unknown range bound")
	}
	if ka != kb {
		return p.errorf(tok, "range bounds are of different kinds")
	}
	d := ka.dim()
	if !d.contains(va) || !d.contains(vb) {
		return p.errorf(tok, d.name+" out of range")
	}
	s := d.span(va, vb)
	if ka == kindWeekOfYear && s == d.full() {
		return p.errorf(tok, "week of year range selects every week")
	}
	*p.set(ka) |= s
	return nil
}

// step handles "1/2" (every 2nd day starting on the 1st) and "w00/w02"
// (every 2nd week starting at week 0).
func (p *clauseParser) step(tok, a, b string) error {
	kind, start, ok := classify(a)
	if !ok || (kind != kindDay && kind != kindWeekOfYear) {
		return p.errorf(tok, "step is only valid for days of month and weeks of year")
	}
	if kind == kindWeekOfYear {
		b = strings.TrimPrefix(b, "w")
	}
	if !allDigits(b) {
		return p.errorf(tok, "invalid step")
	}
	n, err := strconv.Atoi(b)
	if err != nil || n <= 0 {
		return p.errorf(tok, "step must be positive")
	}
	d := kind.dim()
	if !d.contains(start) {
		return p.errorf(tok, d.name+" out of range")
	}
	s := d.every(start, n)
	if kind == kindWeekOfYear && s == d.full() {
		return p.errorf(tok, "week of year step selects every week")
	}
	*p.set(kind) |= s
	return nil
}

func isMeridiem(s string) bool { return s == "am" || s == "pm" }

func (p *clauseParser) at(raw string) error {
	if p.timeSet {
		return p.errorf(raw, "time of day specified twice")
	}
	t := strings.ToLower(raw)
	mer := ""
	if strings.HasSuffix(t, "am") || strings.HasSuffix(t, "pm") {
		mer = t[len(t)-2:]
		t = t[:len(t)-2]
	}
	hs, ms, ok := strings.Cut(t, ":")
	if !ok || len(ms) == 0 || len(ms) > 2 || !allDigits(ms) {
		return p.errorf(raw, "invalid time of day, expected HH:MM")
	}
	minute, _ := strconv.Atoi(ms)
	if minute > 59 {
		return p.errorf(raw, "minute out of range")
	}
	if hs != "" {
		if len(hs) > 2 || !allDigits(hs) {
			return p.errorf(raw, "invalid hour")
		}
		hour, _ := strconv.Atoi(hs)
		switch mer {
		case "":
			if hour > 23 {
				return p.errorf(raw, "hour out of range")
			}
		default:
			if hour < 1 || hour > 12 {
				return p.errorf(raw, "hour out of range for am/pm")
			}
			hour %= 12
			if mer == "pm" {
				hour += 12
			}
		}
		p.hour = hour
	} else if mer != "" {
		return p.errorf(raw, "am/pm requires an hour")
	}
	p.c.Minute = minute
	p.timeSet = true
	return nil
}

func (p *clauseParser) override(raw string) error {
	k, v, _ := strings.Cut(raw, "=")
	key := strings.ToLower(strings.TrimSpace(k))
	val := strings.TrimSpace(v)
	if key == "" || val == "" {
		return p.errorf(raw, "override needs key=value")
	}
	if p.keys == nil {
		p.keys = map[string]bool{}
	}
	if p.keys[key] {
		return p.errorf(raw, "override specified twice")
	}
	p.keys[key] = true
	if p.c.Override == nil {
		p.c.Override = &RunOverride{}
	}
	o := p.c.Override

	switch key {
	case "level":
		lvl, ok := levelNames[strings.ToLower(val)]
		if !ok {
			return p.errorf(raw, "unknown level")
		}
		o.Level = lvl
	case "pool":
		o.Pool = val
	case "fullpool":
		o.FullPool = val
	case "incrementalpool":
		o.IncrementalPool = val
	case "differentialpool":
		o.DifferentialPool = val
	case "nextpool":
		o.NextPool = val
	case "storage":
		o.Storage = val
	case "messages":
		o.Messages = val
	case "priority":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return p.errorf(raw, "priority must be a positive integer")
		}
		o.Priority = n
	case "spooldata", "accurate":
		b, ok := parseYesNo(val)
		if !ok {
			return p.errorf(raw, "expected yes or no")
		}
		if key == "spooldata" {
			o.SpoolData = &b
		} else {
			o.Accurate = &b
		}
	default:
		return p.errorf(raw, "unknown override")
	}
	return nil
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, true
	case "no", "false", "0":
		return false, true
	}
	return false, false
}
