package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"Todo":          StatusTodo,
		"TODO":          StatusTodo,
		"pending":       StatusTodo,
		"In Progress":   StatusInProgress,
		"in-progress":   StatusInProgress,
		"IN_PROGRESS":   StatusInProgress,
		"Completed":     StatusCompleted,
		"complete":      StatusCompleted,
		"done":          StatusCompleted,
		"On Hold":       StatusOnHold,
		"on-hold":       StatusOnHold,
		"":              StatusUnknown,
		"archived":      StatusUnknown,
		"incomplete":    StatusUnknown,
		"not completed": StatusUnknown,
		"Not Done":      StatusUnknown,
	}
	for raw, want := range cases {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q): expected %q, got %q", raw, want, got)
		}
	}
}

func TestTaskDecodeBackendShape(t *testing.T) {
	input := `{
		"id": "t-1",
		"title": "Replace panel",
		"status": "in progress",
		"project": {"_id": "p-1", "title": "Doha Tower"},
		"asset": "a-1",
		"order": null,
		"photos": ["uploads/1.jpg"],
		"actual_start_time": "2024-03-01T08:30:00.000Z"
	}`
	var task Task
	if err := json.Unmarshal([]byte(input), &task); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if task.ID != "t-1" {
		t.Errorf("Expected ID t-1, got %s", task.ID)
	}
	if task.Status != StatusInProgress {
		t.Errorf("Expected status In Progress, got %s", task.Status)
	}
	if task.Project.ID != "p-1" || task.Project.Name != "Doha Tower" {
		t.Errorf("Expected project p-1/Doha Tower, got %+v", task.Project)
	}
	if task.Asset.ID != "a-1" {
		t.Errorf("Expected asset a-1, got %+v", task.Asset)
	}
	if !task.Order.Empty() {
		t.Errorf("Expected empty order ref, got %+v", task.Order)
	}
	if task.ActualStartTime == nil || task.ActualStartTime.Hour() != 8 {
		t.Errorf("Expected start time at 08:30, got %v", task.ActualStartTime)
	}
}

func TestTaskDecodeMissingStatus(t *testing.T) {
	inputs := map[string]string{
		"missing": `{"_id":"t1","title":"x"}`,
		"null":    `{"_id":"t1","title":"x","status":null}`,
		"empty":   `{"_id":"t1","title":"x","status":""}`,
	}
	for name, input := range inputs {
		var task Task
		if err := json.Unmarshal([]byte(input), &task); err != nil {
			t.Fatalf("%s: Unmarshal failed: %v", name, err)
		}
		if task.Status != StatusUnknown {
			t.Errorf("%s: expected status Unknown, got %q", name, task.Status)
		}
		if !task.Status.Valid() {
			t.Errorf("%s: expected a valid status, got %q", name, task.Status)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range append(Statuses, StatusUnknown) {
		if !s.Valid() {
			t.Errorf("Expected %q to be valid", s)
		}
	}
	if Status("").Valid() || Status("done").Valid() {
		t.Error("Expected raw strings to be invalid")
	}
}

func TestProjectDecimalCoordinates(t *testing.T) {
	input := `{"_id":"p-1","title":"Site","latitude":{"$numberDecimal":"25.2854"},"longitude":51.531}`
	var p Project
	if err := json.Unmarshal([]byte(input), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	lat, ok := p.Latitude.Float()
	if !ok || lat != 25.2854 {
		t.Errorf("Expected latitude 25.2854, got %v (%v)", lat, ok)
	}
	lon, ok := p.Longitude.Float()
	if !ok || lon != 51.531 {
		t.Errorf("Expected longitude 51.531, got %v (%v)", lon, ok)
	}
}

func TestProjectMissingCoordinates(t *testing.T) {
	var p Project
	if err := json.Unmarshal([]byte(`{"_id":"p-2","title":"No coords"}`), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := p.Latitude.Float(); ok {
		t.Error("Expected missing latitude")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	snap := Snapshot{
		Tasks: []Task{{
			ID:              "t-1",
			Title:           "Replace panel",
			Status:          StatusInProgress,
			Project:         Ref{ID: "p-1", Name: "Doha Tower"},
			Asset:           Ref{ID: "a-1"},
			Order:           Ref{ID: "o-1", Name: "WO-15"},
			Photos:          []string{"uploads/1.jpg"},
			Comments:        "left side",
			ActualStartTime: &start,
		}},
		Orders:   []Order{{ID: "o-1", OrderNumber: "WO-15", Title: "Panels", Status: "Pending", Customer: Ref{ID: "c-1"}}},
		Assets:   []Asset{{ID: "a-1", Name: "Panel"}},
		Projects: []Project{{ID: "p-1", Title: "Doha Tower", Latitude: CoordinatePtr(25.2854), Longitude: CoordinatePtr(51.531)}},
	}

	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(snap, got) {
		t.Errorf("Round trip mismatch:\nwant %+v\n got %+v", snap, got)
	}
}

func TestSignatureEmpty(t *testing.T) {
	var nilSig *SignaturePath
	if !nilSig.Empty() {
		t.Error("Expected nil signature to be empty")
	}
	if !(&SignaturePath{Strokes: [][]Point{{}}}).Empty() {
		t.Error("Expected signature with empty stroke to be empty")
	}
	if (&SignaturePath{Strokes: [][]Point{{{X: 1, Y: 2}}}}).Empty() {
		t.Error("Expected signature with a point to be non-empty")
	}
}
