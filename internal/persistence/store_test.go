package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"tank-tracker/internal/config"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zerolog.Nop())
}

func TestSnapshotLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() = %v", err)
	}
	if data != nil {
		t.Fatalf("fresh database must have no snapshot, got %s", data)
	}

	if err := s.SaveSnapshot(ctx, []byte(`{"battles": {}}`)); err != nil {
		t.Fatalf("SaveSnapshot() = %v", err)
	}
	if err := s.SaveSnapshot(ctx, []byte(`{"battles": {"a1": {}}}`)); err != nil {
		t.Fatalf("second SaveSnapshot() = %v", err)
	}

	data, err = s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() = %v", err)
	}
	if string(data) != `{"battles": {"a1": {}}}` {
		t.Errorf("loaded = %s, want the latest save", data)
	}

	if err := s.ClearSnapshot(ctx); err != nil {
		t.Fatalf("ClearSnapshot() = %v", err)
	}
	data, err = s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() after clear = %v", err)
	}
	if data != nil {
		t.Errorf("cleared snapshot must be gone, got %s", data)
	}
}

func TestAccessKeyIsStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AccessKey(ctx)
	if err != nil {
		t.Fatalf("AccessKey() = %v", err)
	}
	if first == "" {
		t.Fatal("generated key must not be empty")
	}

	second, err := s.AccessKey(ctx)
	if err != nil {
		t.Fatalf("second AccessKey() = %v", err)
	}
	if second != first {
		t.Errorf("key changed across calls: %q then %q", first, second)
	}
}
