package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/model"
	"golang.org/x/oauth2"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/login" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"user":{"_id":"u-1","name":"Ali","email":"ali@example.com"},"token":"tok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Login(context.Background(), "ali@example.com", "good")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.ID != "u-1" || res.Token != "tok" {
		t.Errorf("Unexpected login result %+v", res)
	}

	_, err = c.Login(context.Background(), "ali@example.com", "bad")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthError, got %v", err)
	}
}

func TestTasksByUserBothShapes(t *testing.T) {
	bodies := map[string]string{
		"u-array":    `[{"_id":"t-1","title":"A","status":"todo"}]`,
		"u-envelope": `{"tasks":[{"_id":"t-1","title":"A","status":"todo"}],"total":1}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/tasks/user/")
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("Expected limit=50, got %q", r.URL.RawQuery)
		}
		io.WriteString(w, bodies[id])
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	for id := range bodies {
		tasks, err := c.TasksByUser(context.Background(), id, TaskQuery{Limit: 50})
		if err != nil {
			t.Fatalf("TasksByUser(%s) failed: %v", id, err)
		}
		if len(tasks) != 1 || tasks[0].ID != "t-1" || tasks[0].Status != model.StatusTodo {
			t.Errorf("TasksByUser(%s): unexpected tasks %+v", id, tasks)
		}
	}
}

func TestTasksByUserServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"db down"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).TasksByUser(context.Background(), "u-1", TaskQuery{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if netErr.StatusCode != http.StatusInternalServerError || netErr.Message != "db down" {
		t.Errorf("Unexpected error fields %+v", netErr)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects/p-1" {
			io.WriteString(w, `{"_id":"p-1","title":"Site","latitude":{"$numberDecimal":"1.25"},"longitude":2.5}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.Project(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if lat, _ := p.Latitude.Float(); lat != 1.25 {
		t.Errorf("Expected latitude 1.25, got %v", lat)
	}

	_, err = c.Order(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if nf.Resource != "order" || nf.ID != "missing" {
		t.Errorf("Unexpected error fields %+v", nf)
	}
}

func TestUpdateTaskJSONAndMultipart(t *testing.T) {
	var gotContentType string
	var gotFields map[string]string
	var gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotFields = map[string]string{}
		if strings.HasPrefix(gotContentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm failed: %v", err)
			}
			for k, v := range r.MultipartForm.Value {
				gotFields[k] = v[0]
			}
			f, hdr, err := r.FormFile("photos")
			if err != nil {
				t.Errorf("Expected photos file part: %v", err)
			} else {
				b, _ := io.ReadAll(f)
				gotFile = hdr.Filename + ":" + string(b)
			}
		} else {
			json.NewDecoder(r.Body).Decode(&gotFields)
		}
		io.WriteString(w, `{"_id":"t-1","status":"`+gotFields["status"]+`"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	task, err := c.UpdateTask(context.Background(), "t-1", BuildUpdatePayload(map[string]string{"status": "On Hold"}))
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON without attachments, got %s", gotContentType)
	}
	if task.Status != model.StatusOnHold {
		t.Errorf("Expected On Hold, got %s", task.Status)
	}

	p := BuildUpdatePayload(
		map[string]string{"status": "In Progress", "comments": ""},
		BytesAttachment("photos", "start.jpg", "image/jpeg", []byte("jpegdata")),
	)
	task, err = c.UpdateTask(context.Background(), "t-1", p)
	if err != nil {
		t.Fatalf("UpdateTask multipart failed: %v", err)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Errorf("Expected multipart with attachments, got %s", gotContentType)
	}
	if gotFields["status"] != "In Progress" {
		t.Errorf("Expected status field, got %+v", gotFields)
	}
	if _, ok := gotFields["comments"]; ok {
		t.Error("Expected empty comments to be dropped")
	}
	if gotFile != "start.jpg:jpegdata" {
		t.Errorf("Unexpected file part %q", gotFile)
	}
	if task.Status != model.StatusInProgress {
		t.Errorf("Expected In Progress, got %s", task.Status)
	}
}

func TestUpdateErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"photo too large"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).UpdateOrder(context.Background(), "o-1", BuildUpdatePayload(map[string]string{"status": "Completed"}))
	var upErr *UpdateError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected UpdateError, got %v", err)
	}
	if upErr.Message != "photo too large" {
		t.Errorf("Expected server message, got %q", upErr.Message)
	}
}

func TestBearerTokenAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Expected bearer header, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID header")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})))
	if err := c.PostLocation(context.Background(), LocationReport{WorkerID: "u-1"}); err != nil {
		t.Fatalf("PostLocation failed: %v", err)
	}
}

func TestPerCallTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithDefaultTimeout(time.Minute))
	ctx := WithTimeout(context.Background(), 50*time.Millisecond)
	start := time.Now()
	_, err := c.Asset(ctx, "a-1")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError on timeout, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Per-call timeout was not applied")
	}
}
