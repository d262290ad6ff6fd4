// Package calendar parses and evaluates director schedules.
//
// A Schedule is an ordered list of clauses ("Run" lines). A clause restricts
// up to six calendar dimensions (hour, day of month, month, weekday, week of
// month, week of year) and carries a time of day plus optional run overrides.
// A schedule matches an instant if any of its clauses does.
//
// Grammar overview (case-insensitive, tokens separated by blanks or commas):
//
//	Level=Full Pool=Weekly 1st sun at 23:05
//	mon-fri at 21:00; sat at 06:30
//	hourly at :15
//	w00/w02 fri at 02:00
//	1/2 jan-mar at 4:30pm
//	cron 0 2 * * 1-5
package calendar
