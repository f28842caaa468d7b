package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	data := []byte("video-bytes")
	key, err := store.Write(context.Background(), "merchants/m1/videos/t1.mp4", data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "merchants/m1/videos/t1.mp4" {
		t.Fatalf("key = %q", key)
	}
	got, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read mismatch: %q", got)
	}
}

func TestFileStorePublicURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := store.PublicURL("merchants/m1/videos/t1.mp4"); got != "http://localhost:8080/static/merchants/m1/videos/t1.mp4" {
		t.Fatalf("public url = %q", got)
	}
	if got := store.PublicURL(""); got != "" {
		t.Fatalf("empty key should yield empty url, got %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.mp4", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := store.Read(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal read to be rejected")
	}
}
