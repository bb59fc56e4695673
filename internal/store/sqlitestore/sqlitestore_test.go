package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Save(ctx, 100, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, 200, []byte{4, 5}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if len(got) != 2 || got[0] != 4 {
		t.Errorf("LoadLatest() = %v, want [4 5]", got)
	}
}

func TestLoadLatestEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, err := s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got != nil {
		t.Errorf("LoadLatest() = %v, want nil", got)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.Save(ctx, 100, []byte{1})
	_ = s.Save(ctx, 300, []byte{2})

	if err := s.Prune(ctx, 200); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	got, err := s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("LoadLatest() after prune = %v, want [2]", got)
	}
}
