package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "tasks"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing key, got %v", err)
	}
	if err := s.Put(ctx, "tasks", []byte(`[1]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "tasks", []byte(`[2,3]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, "tasks")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[2,3]` {
		t.Errorf("Expected full replacement [2,3], got %s", got)
	}
	if err := s.Put(ctx, "orders", []byte(`[]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Clear(ctx, "tasks", "orders", "never-written"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := s.Get(ctx, "orders"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Clear, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := s.Put(context.Background(), "../escape", []byte("x")); err == nil {
		t.Error("Expected error for key containing a path separator")
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first, _ := NewFileStore(dir)
	if err := first.Put(ctx, "user", []byte(`{"_id":"u-1"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, _ := NewFileStore(dir)
	got, err := second.Get(ctx, "user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"_id":"u-1"}` {
		t.Errorf("Expected persisted user, got %s", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	s := NewRedisStoreWithClient(client, "")
	if got := s.Key("tasks"); got != "fieldtask:tasks" {
		t.Errorf("Expected default prefix, got %s", got)
	}
	s = NewRedisStoreWithClient(client, "worker-7:")
	if got := s.Key("user"); got != "worker-7:user" {
		t.Errorf("Expected custom prefix, got %s", got)
	}
}
