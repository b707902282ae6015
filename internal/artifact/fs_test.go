package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyDerivation(t *testing.T) {
	version := NewVersion()
	modelKey := ModelKey(version)
	encoderKey := EncoderKey(modelKey)
	if modelKey == encoderKey {
		t.Fatal("model and encoder keys must differ")
	}
	if encoderKey != "encoder_"+version+".json" {
		t.Fatalf("unexpected encoder key %q", encoderKey)
	}
}

func TestFSStorePublishLoad(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modelBlob := []byte(`{"type":"model"}`)
	encoderBlob := []byte(`{"type":"encoder"}`)

	modelKey, err := store.Publish(NewVersion(), modelBlob, encoderBlob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotModel, gotEncoder, err := store.Load(modelKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(gotModel, modelBlob) || !bytes.Equal(gotEncoder, encoderBlob) {
		t.Fatal("loaded blobs differ from published blobs")
	}
}

func TestFSStoreLoadMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, err = store.Load(ModelKey(NewVersion()))
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("expected ErrArtifactLoad, got %v", err)
	}
}

func TestFSStoreLoadMissingEncoder(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modelKey, err := store.Publish(NewVersion(), []byte("m"), []byte("e"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, EncoderKey(modelKey))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = store.Load(modelKey)
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("expected ErrArtifactLoad, got %v", err)
	}
}

func TestFSStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Publish(NewVersion(), []byte("m"), []byte("e")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected exactly model and encoder files, got %v", names)
	}
}
