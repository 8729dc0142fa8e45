package model

import "strings"

// Status is the closed set of task states surfaced anywhere in the app.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusOnHold     Status = "On Hold"
	StatusUnknown    Status = "Unknown"
)

// Statuses lists the known states in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusOnHold}

// NormalizeStatus maps a raw server status string onto the closed enum.
// Matching is case-insensitive and tolerant of substrings ("in-progress",
// "COMPLETED", "done", "on-hold"...). Anything unmatched is StatusUnknown.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "todo"), strings.Contains(s, "to do"),
		strings.Contains(s, "pending"), s == "open", s == "new":
		return StatusTodo
	case strings.Contains(s, "progress"):
		return StatusInProgress
	case strings.Contains(s, "incomplete"), strings.Contains(s, "uncomplete"),
		strings.Contains(s, "not complete"), strings.Contains(s, "not done"):
		return StatusUnknown
	case strings.Contains(s, "complete"), strings.Contains(s, "done"):
		return StatusCompleted
	case strings.Contains(s, "hold"):
		return StatusOnHold
	}
	return StatusUnknown
}

// Valid reports whether s is a member of the closed enum, Unknown included.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusOnHold, StatusUnknown:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText normalizes whatever the server sent.
func (s *Status) UnmarshalText(b []byte) error {
	*s = NormalizeStatus(string(b))
	return nil
}
