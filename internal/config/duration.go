package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ParseDurationField parses a duration; path names the field in errors.
// Empty means 0. On top of Go duration syntax, "d" (24h) and "w" (7d) units
// are accepted, so "1w2d" and "36h" are both valid.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	goSyntax, ok := expandDayUnits(s)
	if !ok {
		return 0, errors.WithHint(
			errors.Newf("%s: invalid duration %q", path, raw),
			`use Go duration syntax plus "d" and "w", e.g. "90m", "1d12h", "2w"`)
	}
	d, err := time.ParseDuration(goSyntax)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: invalid duration %q", path, raw)
	}
	if d < 0 {
		return 0, errors.Newf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for 0.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// expandDayUnits rewrites "d" and "w" components as hours. Other components
// are copied as is for time.ParseDuration to judge.
func expandDayUnits(s string) (string, bool) {
	if !strings.ContainsAny(s, "dw") {
		return s, true
	}
	var b strings.Builder
	if s[0] == '-' || s[0] == '+' {
		b.WriteByte(s[0])
		s = s[1:]
	}
	for s != "" {
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		num := s[:i]
		j := i
		for j < len(s) && !(s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
			j++
		}
		unit := s[i:j]
		s = s[j:]
		if num == "" {
			return "", false
		}

		var hours int64
		switch unit {
		case "d":
			hours = 24
		case "w":
			hours = 7 * 24
		default:
			b.WriteString(num)
			b.WriteString(unit)
			continue
		}
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return "", false
		}
		b.WriteString(strconv.FormatInt(n*hours, 10))
		b.WriteByte('h')
	}
	return b.String(), true
}
