package blacklist

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"submit_bot/internal/model"
	"submit_bot/internal/storage"
)

var ignoreAddedAt = cmpopts.IgnoreFields(model.BlacklistEntry{}, "AddedAt")

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadAndWriteThrough(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.AddBlacklist(ctx, &model.BlacklistEntry{UserID: 5, Reason: "spam"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := New(store)
	if c.Contains(5) {
		t.Fatal("cache populated before Load")
	}
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Contains(5) {
		t.Error("loaded entry missing")
	}

	if err := c.Add(ctx, 3, "abuse"); err != nil {
		t.Fatalf("add: %v", err)
	}
	want := []model.BlacklistEntry{{UserID: 3, Reason: "abuse"}, {UserID: 5, Reason: "spam"}}
	if diff := cmp.Diff(want, c.List(), ignoreAddedAt); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	// A fresh cache sees the written-through entry.
	fresh := New(store)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !fresh.Contains(3) {
		t.Error("added entry not persisted")
	}

	removed, err := c.Remove(ctx, 5)
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if c.Contains(5) {
		t.Error("removed entry still cached")
	}
	removed, err = c.Remove(ctx, 5)
	if err != nil || removed {
		t.Errorf("second remove = %v, %v", removed, err)
	}
}

type failingStore struct{ Store }

func (failingStore) AddBlacklist(context.Context, *model.BlacklistEntry) error {
	return errors.New("disk full")
}

func TestAddFailureLeavesCacheUnchanged(t *testing.T) {
	c := New(failingStore{Store: newTestStore(t)})
	if err := c.Add(context.Background(), 1, ""); err == nil {
		t.Fatal("expected error")
	}
	if c.Contains(1) {
		t.Error("entry cached despite store failure")
	}
}
