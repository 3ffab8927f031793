package statestore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meshview/internal/statestore"
	"meshview/internal/wire"
)

func openStore(t *testing.T) (*statestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "state.db")
	store, err := statestore.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestLastViewEmpty(t *testing.T) {
	store, _ := openStore(t)
	_, ok, err := store.LastView(context.Background())
	if err != nil {
		t.Fatalf("LastView: %v", err)
	}
	if ok {
		t.Fatal("expected no saved view")
	}
}

func TestSaveAndHistory(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	views := []wire.View{
		{Position: wire.Vec3{-1, -1, -1}},
		{Position: wire.Vec3{1, 2, 3}, LookAt: wire.Vec3{0.25, 0.5, -0.75}},
	}
	for _, v := range views {
		if err := store.SaveView(ctx, "session-a", v); err != nil {
			t.Fatalf("SaveView: %v", err)
		}
	}

	last, ok, err := store.LastView(ctx)
	if err != nil || !ok {
		t.Fatalf("LastView: ok=%v err=%v", ok, err)
	}
	if last.View != views[1] {
		t.Fatalf("last view = %+v, want %+v", last.View, views[1])
	}
	if last.SessionID != "session-a" {
		t.Fatalf("session = %q", last.SessionID)
	}

	hist, err := store.History(ctx, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != last.ID {
		t.Fatalf("History(1) = %+v", hist)
	}
	all, err := store.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 2 || all[1].View != views[0] {
		t.Fatalf("History(0) = %+v", all)
	}

	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}
}

func TestReopenKeepsViews(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	want := wire.View{Position: wire.Vec3{4, 5, 6}}
	if err := store.SaveView(ctx, "s", want); err != nil {
		t.Fatalf("SaveView: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := statestore.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	last, ok, err := reopened.LastView(ctx)
	if err != nil || !ok || last.View != want {
		t.Fatalf("LastView after reopen = %+v,%v,%v", last, ok, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	raw, err := statestore.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := raw.SetSchemaVersionForTest(ctx, 99); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = raw.Close()

	if _, err := statestore.Open(ctx, path); !errors.Is(err, statestore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
