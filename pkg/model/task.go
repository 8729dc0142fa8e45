package model

import (
	"encoding/json"
	"time"
)

// Task is a unit of field work against an asset within a project.
type Task struct {
	ID              string     `json:"_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          Status     `json:"status,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	Project         Ref        `json:"project"`
	Asset           Ref        `json:"asset"`
	Order           Ref        `json:"order"`
	Photos          []string   `json:"photos,omitempty"`
	Comments        string     `json:"comments,omitempty"`
	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Duration        float64    `json:"duration,omitempty"` // hours
}

// UnmarshalJSON accepts "id" when "_id" is missing.
func (t *Task) UnmarshalJSON(b []byte) error {
	type task Task
	aux := struct {
		*task
		LegacyID string `json:"id"`
	}{task: (*task)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = aux.LegacyID
	}
	// A missing or null status never reaches UnmarshalText.
	if !t.Status.Valid() {
		t.Status = NormalizeStatus(string(t.Status))
	}
	return nil
}

// Order is a customer-facing work order containing one or more tasks.
type Order struct {
	ID          string     `json:"_id"`
	OrderNumber string     `json:"order_number,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Customer    Ref        `json:"customer"`
	Project     Ref        `json:"project"`
	Signature   string     `json:"signature,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// State returns the normalized order status.
func (o Order) State() Status {
	return NormalizeStatus(o.Status)
}

// UnmarshalJSON accepts "id" when "_id" is missing.
func (o *Order) UnmarshalJSON(b []byte) error {
	type order Order
	aux := struct {
		*order
		LegacyID string `json:"id"`
	}{order: (*order)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = aux.LegacyID
	}
	return nil
}

// Project carries the site coordinates used by the geofence.
type Project struct {
	ID        string      `json:"_id"`
	Title     string      `json:"title"`
	Address   string      `json:"address,omitempty"`
	Latitude  *Coordinate `json:"latitude,omitempty"`
	Longitude *Coordinate `json:"longitude,omitempty"`
}

// UnmarshalJSON accepts "id" when "_id" is missing.
func (p *Project) UnmarshalJSON(b []byte) error {
	type project Project
	aux := struct {
		*project
		LegacyID string `json:"id"`
	}{project: (*project)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.LegacyID
	}
	return nil
}

// Asset is descriptive only.
type Asset struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// UnmarshalJSON accepts "id" when "_id" is missing.
func (a *Asset) UnmarshalJSON(b []byte) error {
	type asset Asset
	aux := struct {
		*asset
		LegacyID string `json:"id"`
	}{asset: (*asset)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.LegacyID
	}
	return nil
}

// User is the authenticated worker.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// UnmarshalJSON accepts "id" when "_id" is missing.
func (u *User) UnmarshalJSON(b []byte) error {
	type user User
	aux := struct {
		*user
		LegacyID string `json:"id"`
	}{user: (*user)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.LegacyID
	}
	return nil
}

// Snapshot is the full local mirror of the session's work.
type Snapshot struct {
	Tasks    []Task    `json:"tasks"`
	Orders   []Order   `json:"orders"`
	Assets   []Asset   `json:"assets"`
	Projects []Project `json:"projects"`
}

// EmptySnapshot returns a snapshot whose collections are empty, not nil.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Tasks:    []Task{},
		Orders:   []Order{},
		Assets:   []Asset{},
		Projects: []Project{},
	}
}
