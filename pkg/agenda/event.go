// Package agenda mirrors dated tasks into a Google Calendar.
package agenda

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// TaskIDProperty is the private extended property carrying the task id.
const TaskIDProperty = "fieldtask_id"

const defaultDuration = 30 * time.Minute

// ErrUndated is returned for tasks with no due, start or end time.
var ErrUndated = errors.New("agenda: task has no date")

// Dated reports whether the task can be placed on a calendar.
func Dated(t model.Task) bool {
	return t.DueDate != nil || t.ActualStartTime != nil || t.ActualEndTime != nil
}

func duration(t model.Task) time.Duration {
	if t.Duration > 0 {
		return time.Duration(t.Duration * float64(time.Hour))
	}
	return 0
}

// Summary prefixes the title with the task's state: completed, started or
// past due.
func Summary(t model.Task, now time.Time) string {
	prefix := ""
	switch {
	case t.Status == model.StatusCompleted:
		prefix = "✓"
	case t.Status == model.StatusInProgress || t.ActualStartTime != nil:
		prefix = "‣"
	case t.DueDate != nil && t.DueDate.Before(now):
		prefix = "!"
	}
	if prefix == "" {
		return t.Title
	}
	return prefix + " " + t.Title
}

// span places the event. Completed tasks end at their end time, started
// tasks begin at their start time, others begin at the due date.
func span(t model.Task, now time.Time) (start, end time.Time, err error) {
	est := duration(t)
	length := defaultDuration
	if est > 0 {
		length = est
	}

	switch {
	case t.Status == model.StatusCompleted:
		end = now
		if t.ActualEndTime != nil {
			end = *t.ActualEndTime
		}
		if t.ActualStartTime != nil && t.ActualStartTime.Before(end) {
			start = *t.ActualStartTime
		} else {
			start = end.Add(-length)
		}
	case t.ActualStartTime != nil:
		start = *t.ActualStartTime
		end = start.Add(length)
	case t.DueDate != nil:
		start = *t.DueDate
		end = start.Add(length)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrUndated, t.ID)
	}
	return start, end, nil
}

func describe(t model.Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	if t.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	}
	if !t.Project.Empty() {
		fmt.Fprintf(&b, "Project: %s\n", t.Project.Label())
	}
	if !t.Order.Empty() {
		fmt.Fprintf(&b, "Order: %s\n", t.Order.Label())
	}
	if !t.Asset.Empty() {
		fmt.Fprintf(&b, "Asset: %s\n", t.Asset.Label())
	}
	fmt.Fprintf(&b, "ID: %s\n", t.ID)

	if t.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Description)
	}

	b.WriteString("\nAccounting:\n")
	est := duration(t)
	if est > 0 {
		fmt.Fprintf(&b, "• estimated: %s\n", est)
	}
	if t.ActualStartTime != nil && t.DueDate != nil {
		diff := t.ActualStartTime.Sub(*t.DueDate)
		if diff > time.Minute {
			fmt.Fprintf(&b, "• started late by: %s\n", diff.Round(time.Minute))
		} else if diff < -time.Minute {
			fmt.Fprintf(&b, "• started early by: %s\n", (-diff).Round(time.Minute))
		}
	}
	if t.Status == model.StatusCompleted && t.ActualStartTime != nil && t.ActualEndTime != nil {
		spent := t.ActualEndTime.Sub(*t.ActualStartTime)
		if spent > 0 {
			fmt.Fprintf(&b, "• spent: %s\n", spent.Round(time.Second))
			if est > 0 {
				if diff := spent - est; diff > 0 {
					fmt.Fprintf(&b, "• over estimate by: %s\n", diff.Round(time.Second))
				} else if diff < 0 {
					fmt.Fprintf(&b, "• under estimate by: %s\n", (-diff).Round(time.Second))
				}
			}
		}
	}

	if t.Comments != "" {
		fmt.Fprintf(&b, "\nNotes:\n‣ %s\n", t.Comments)
	}
	return b.String()
}

// ConvertTask builds the calendar event for a task.
func ConvertTask(t model.Task, colorID string, now time.Time) (*calendar.Event, error) {
	start, end, err := span(t, now)
	if err != nil {
		return nil, err
	}
	return &calendar.Event{
		Summary:     Summary(t, now),
		ColorId:     colorID,
		Description: describe(t),
		Start:       &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: t.ID},
		},
	}, nil
}

// EventNeedsUpdate returns a patch with the fields of target that differ
// from existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameTimes(existing, target)
	if err != nil {
		return nil, err
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTimes(a, b *calendar.Event) (bool, error) {
	if a.Start == nil || a.End == nil {
		return false, nil
	}
	pairs := [][2]string{
		{a.Start.DateTime, b.Start.DateTime},
		{a.End.DateTime, b.End.DateTime},
	}
	for _, p := range pairs {
		if p[0] == "" {
			return false, nil
		}
		x, err := time.Parse(time.RFC3339, p[0])
		if err != nil {
			return false, err
		}
		y, err := time.Parse(time.RFC3339, p[1])
		if err != nil {
			return false, err
		}
		if !x.Equal(y) {
			return false, nil
		}
	}
	return true, nil
}
