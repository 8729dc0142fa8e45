package api

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildUpdatePayloadDropsEmpty(t *testing.T) {
	p := BuildUpdatePayload(map[string]string{"status": "Completed", "comments": ""},
		Attachment{Field: "photos"})
	if _, ok := p.Fields["comments"]; ok {
		t.Error("Expected empty comments to be dropped")
	}
	if p.Multipart() {
		t.Error("Expected attachment without content to be dropped")
	}
	body, ct, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
	var fields map[string]string
	json.Unmarshal(body, &fields)
	if fields["status"] != "Completed" {
		t.Errorf("Expected status field, got %+v", fields)
	}
}

func TestFileAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_0001.JPG")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	a := FileAttachment("photos", path)
	if a.Filename != "IMG_0001.JPG" || a.ContentType != "image/jpeg" {
		t.Errorf("Unexpected attachment %+v", a)
	}
	p := BuildUpdatePayload(nil, a)
	if !p.Multipart() {
		t.Fatal("Expected multipart payload")
	}
	if _, ct, err := p.Encode(); err != nil || ct == "application/json" {
		t.Errorf("Expected multipart encoding, got %s (%v)", ct, err)
	}
}

func TestFileAttachmentMissingFile(t *testing.T) {
	p := BuildUpdatePayload(nil, FileAttachment("photos", filepath.Join(t.TempDir(), "nope.jpg")))
	if _, _, err := p.Encode(); err == nil {
		t.Error("Expected error for missing photo file")
	}
}
