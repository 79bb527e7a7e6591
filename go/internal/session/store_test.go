package session

import (
	"context"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("fresh store should be empty, ok=%v err=%v", ok, err)
	}

	want := Session{Token: "tok-1", Role: "team", TeamID: "red", TeamName: "Red", TeamColor: "#f00"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load after save: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, Session{Token: "first", Role: "admin"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, Session{Token: "second", Role: "admin"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Token != "second" {
		t.Errorf("token = %q, want the second save", got.Token)
	}
}

func TestStoreClear(t *testing.T) {
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, Session{Token: "tok", Role: "admin"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Errorf("store should be empty after clear, ok=%v err=%v", ok, err)
	}
}
