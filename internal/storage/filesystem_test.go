package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key := "renders/job-1/source.jpg"
	if err := store.Write(ctx, key, []byte("image-bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("Read returned %q", data)
	}
}

func TestFileStoreReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "renders/nope/output.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreDeleteToleratesMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Delete(context.Background(), "renders/nope/output.mp4"); err != nil {
		t.Fatalf("Delete of missing key should succeed, got %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Write(context.Background(), "../escape.txt", []byte("x"), "text/plain"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestFileStorePresignCarriesExpiry(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.PresignUpload(context.Background(), "renders/job-1/source.jpg", "image/jpeg", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if !strings.Contains(url, "expires=") || !strings.Contains(url, "op=upload") {
		t.Fatalf("unexpected presigned URL %q", url)
	}
}
