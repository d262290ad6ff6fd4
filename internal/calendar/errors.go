package calendar

import "fmt"

// ParseError reports the clause and token that could not be parsed.
// Clause is the 0-based index of the clause within the schedule text.
type ParseError struct {
	Clause  int
	Token   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("clause %d: %s", e.Clause+1, e.Message)
	}
	return fmt.Sprintf("clause %d: %s: %q", e.Clause+1, e.Message, e.Token)
}

// Warning is a non-fatal parse diagnostic.
type Warning struct {
	Clause  int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("clause %d: %s", w.Clause+1, w.Message)
}
