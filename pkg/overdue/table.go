// Package overdue remembers mirrored events whose task is not yet past due,
// so they can be flagged once the due date passes.
package overdue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type Entry struct {
	TaskID  string    `json:"task_id"`
	EventID string    `json:"event_id"`
	Summary string    `json:"summary"`
	Due     time.Time `json:"due"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	dirty   bool
}

// NewTable loads the table at path if it exists. An empty path keeps it in
// memory.
func NewTable(path string) (*Table, error) {
	t := &Table{
		Path:    path,
		Entries: make(map[string]Entry),
	}
	if path == "" {
		return t, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

func (t *Table) Save() error {
	if !t.dirty || t.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(t); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Update tracks an open task due after now. Anything else is dropped from
// the table.
func (t *Table) Update(taskID, eventID, summary string, due, now time.Time) {
	if due.IsZero() || !due.After(now) {
		t.Remove(taskID)
		return
	}
	old, exists := t.Entries[taskID]
	next := Entry{TaskID: taskID, EventID: eventID, Summary: summary, Due: due}
	if !exists || old != next {
		t.Entries[taskID] = next
		t.dirty = true
	}
}

func (t *Table) Remove(taskID string) {
	if _, exists := t.Entries[taskID]; exists {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep removes and returns the entries due before now, earliest first.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for id, entry := range t.Entries {
		if entry.Due.Before(now) {
			swept = append(swept, entry)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].Due.Before(swept[j].Due) })
	return swept
}
