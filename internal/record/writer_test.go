package record

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"submit_bot/internal/model"
	"submit_bot/internal/publish"
	"submit_bot/internal/search"
	"submit_bot/internal/storage"
)

// flakyStore fails the first n SavePublished calls.
type flakyStore struct {
	storage.Storage
	mu    sync.Mutex
	fails int
	saves int
}

func (f *flakyStore) SavePublished(ctx context.Context, rec *model.PublishedRecord, ownerID int64) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves <= f.fails
	f.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return f.Storage.SavePublished(ctx, rec, ownerID)
}

type mockIndex struct {
	mu       sync.Mutex
	upserted []int64
	deleted  []int64
}

func (m *mockIndex) Upsert(_ context.Context, doc search.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, doc.MessageID)
	return nil
}

func (m *mockIndex) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (m *mockNotifier) NotifyOwner(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func newTestWriter(t *testing.T, fails int, opts Options) (*Writer, *flakyStore, *mockIndex, *mockNotifier) {
	t.Helper()
	db, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := &flakyStore{Storage: db, fails: fails}
	idx := &mockIndex{}
	notifier := &mockNotifier{}
	w := NewWriter(store, idx, notifier, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return w, store, idx, notifier
}

func seedSession(t *testing.T, store storage.Storage) *model.Session {
	t.Helper()
	sess := &model.Session{
		OwnerID:     42,
		DisplayName: "carol",
		State:       model.StateSpoiler,
		Mode:        model.ModeMixed,
		MediaItems:  []model.MediaItem{{Kind: model.MediaVideo, Ref: "v1"}},
		DocumentItems: []model.DocumentItem{
			{Kind: "document", Ref: "d1", DisplayName: "a.pdf"},
			{Kind: "document", Ref: "d2", DisplayName: "b.zip"},
		},
		Tags:         []string{"#x"},
		Title:        "Title",
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func TestBuildRecord(t *testing.T) {
	sess := &model.Session{
		OwnerID:       1,
		DisplayName:   "dave",
		MediaItems:    []model.MediaItem{{Kind: model.MediaImage, Ref: "p"}},
		DocumentItems: []model.DocumentItem{{Kind: "document", Ref: "d", DisplayName: "x.pdf"}},
		Tags:          []string{"#a"},
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := BuildRecord(sess, &publish.Result{PrimaryID: 10, RelatedIDs: []int64{11}, Caption: "c"}, at)
	want := &model.PublishedRecord{
		MessageID:         10,
		OwnerID:           1,
		DisplayName:       "dave",
		Tags:              []string{"#a"},
		ContentType:       model.ContentMixed,
		AttachmentRefs:    []string{"photo:p", "document:d"},
		Caption:           "c",
		FileName:          "x.pdf",
		PublishedAt:       at,
		RelatedMessageIDs: []int64{11},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	submitter := Submitter{ID: 42, Username: "carol", FullName: "Carol C"}
	res := &publish.Result{PrimaryID: 500, RelatedIDs: []int64{501}, Caption: "cap"}

	t.Run("success", func(t *testing.T) {
		w, store, idx, notifier := newTestWriter(t, 0, Options{NotifyOwner: true, OwnerID: 1})
		sess := seedSession(t, store)

		rec, err := w.Persist(ctx, sess, res, submitter, "https://t.me/chan/500")
		if err != nil {
			t.Fatalf("persist: %v", err)
		}
		if rec.FileName != "a.pdf, b.zip" {
			t.Errorf("file name = %q", rec.FileName)
		}
		got, err := store.GetPublished(ctx, 500)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ContentType != model.ContentMixed {
			t.Errorf("content type = %s", got.ContentType)
		}
		if _, err := store.GetSession(ctx, 42); !errors.Is(err, storage.ErrSessionNotFound) {
			t.Errorf("session kept: %v", err)
		}
		if diff := cmp.Diff([]int64{500}, idx.upserted); diff != "" {
			t.Errorf("index mismatch (-want +got):\n%s", diff)
		}
		want := []Notification{{Submitter: submitter, MessageID: 500, PostLink: "https://t.me/chan/500"}}
		if diff := cmp.Diff(want, notifier.sent); diff != "" {
			t.Errorf("notifications mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("retry once", func(t *testing.T) {
		w, store, idx, _ := newTestWriter(t, 1, Options{})
		sess := seedSession(t, store)

		if _, err := w.Persist(ctx, sess, res, submitter, ""); err != nil {
			t.Fatalf("persist: %v", err)
		}
		if store.saves != 2 {
			t.Errorf("saves = %d, want 2", store.saves)
		}
		if len(idx.upserted) != 1 {
			t.Errorf("upserts = %d, want 1", len(idx.upserted))
		}
	})

	t.Run("double failure still clears session", func(t *testing.T) {
		w, store, idx, notifier := newTestWriter(t, 2, Options{NotifyOwner: true, OwnerID: 1})
		sess := seedSession(t, store)

		if _, err := w.Persist(ctx, sess, res, submitter, ""); err == nil {
			t.Fatal("expected error")
		}
		if _, err := store.GetSession(ctx, 42); !errors.Is(err, storage.ErrSessionNotFound) {
			t.Errorf("session kept: %v", err)
		}
		if _, err := store.GetPublished(ctx, 500); !errors.Is(err, storage.ErrRecordNotFound) {
			t.Errorf("record exists: %v", err)
		}
		if len(idx.upserted) != 0 {
			t.Error("unsaved record indexed")
		}
		if len(notifier.sent) != 1 {
			t.Error("owner should still be notified of the post")
		}
	})

	t.Run("notification failure is swallowed", func(t *testing.T) {
		w, store, _, notifier := newTestWriter(t, 0, Options{NotifyOwner: true, OwnerID: 1})
		notifier.err = errors.New("chat not found")
		sess := seedSession(t, store)
		if _, err := w.Persist(ctx, sess, res, submitter, ""); err != nil {
			t.Fatalf("persist: %v", err)
		}
	})

	t.Run("notifications disabled", func(t *testing.T) {
		w, store, _, notifier := newTestWriter(t, 0, Options{NotifyOwner: false, OwnerID: 1})
		sess := seedSession(t, store)
		if _, err := w.Persist(ctx, sess, res, submitter, ""); err != nil {
			t.Fatalf("persist: %v", err)
		}
		if len(notifier.sent) != 0 {
			t.Error("notification sent while disabled")
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	w, store, idx, _ := newTestWriter(t, 0, Options{})
	sess := seedSession(t, store)
	if _, err := w.Persist(ctx, sess, &publish.Result{PrimaryID: 9}, Submitter{ID: 42}, ""); err != nil {
		t.Fatalf("persist: %v", err)
	}

	rec, err := w.Delete(ctx, 9)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !rec.Deleted {
		t.Error("record not flagged deleted")
	}
	if diff := cmp.Diff([]int64{9}, idx.deleted); diff != "" {
		t.Errorf("index deletes mismatch (-want +got):\n%s", diff)
	}
	if _, err := w.Delete(ctx, 10); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}
