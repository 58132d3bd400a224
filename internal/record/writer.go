// Package record persists published submissions and notifies collaborators.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"submit_bot/internal/model"
	"submit_bot/internal/publish"
	"submit_bot/internal/search"
	"submit_bot/internal/storage"
)

// Submitter identifies the contributor of a post.
type Submitter struct {
	ID       int64
	Username string
	FullName string
}

// Notification is sent to the bot owner after a publish.
type Notification struct {
	Submitter Submitter
	MessageID int64
	PostLink  string
}

// Notifier delivers owner notifications.
type Notifier interface {
	NotifyOwner(ctx context.Context, n Notification) error
}

// Options configures a Writer.
type Options struct {
	NotifyOwner bool
	OwnerID     int64
}

// Writer turns publish results into durable records.
type Writer struct {
	store    storage.Storage
	index    search.Index
	notifier Notifier
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// NewWriter creates a Writer. A nil index disables indexing and a nil
// notifier disables owner notifications.
func NewWriter(store storage.Storage, index search.Index, notifier Notifier, opts Options, log *slog.Logger) *Writer {
	if index == nil {
		index = search.Nop{}
	}
	return &Writer{
		store:    store,
		index:    index,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// BuildRecord assembles the record for a publish result.
func BuildRecord(sess *model.Session, res *publish.Result, publishedAt time.Time) *model.PublishedRecord {
	refs := make([]string, 0, len(sess.MediaItems)+len(sess.DocumentItems))
	for _, m := range sess.MediaItems {
		refs = append(refs, string(m.Kind)+":"+m.Ref)
	}
	var names []string
	for _, d := range sess.DocumentItems {
		refs = append(refs, d.Kind+":"+d.Ref)
		if d.DisplayName != "" {
			names = append(names, d.DisplayName)
		}
	}

	return &model.PublishedRecord{
		MessageID:         res.PrimaryID,
		OwnerID:           sess.OwnerID,
		DisplayName:       sess.DisplayName,
		Title:             sess.Title,
		Tags:              sess.Tags,
		Link:              sess.Link,
		Note:              sess.Note,
		ContentType:       model.ContentTypeOf(len(sess.MediaItems), len(sess.DocumentItems)),
		AttachmentRefs:    refs,
		Caption:           res.Caption,
		FileName:          strings.Join(names, ", "),
		PublishedAt:       publishedAt,
		RelatedMessageIDs: res.RelatedIDs,
	}
}

// Persist saves the record and deletes the session in one transaction,
// retrying once. If both attempts fail the session is still deleted and the
// error returned. Indexing and owner notification follow and only log
// failures.
func (w *Writer) Persist(ctx context.Context, sess *model.Session, res *publish.Result, submitter Submitter, postLink string) (*model.PublishedRecord, error) {
	log := w.log.With("owner_id", sess.OwnerID, "message_id", res.PrimaryID)
	rec := BuildRecord(sess, res, w.now())

	err := w.store.SavePublished(ctx, rec, sess.OwnerID)
	if err != nil {
		log.Warn("save published record, retrying", "error", err)
		err = w.store.SavePublished(ctx, rec, sess.OwnerID)
	}
	if err != nil {
		log.Error("save published record", "error", err)
		if _, derr := w.store.DeleteSession(ctx, sess.OwnerID); derr != nil {
			log.Error("delete session", "error", derr)
		}
	} else {
		w.indexRecord(ctx, log, rec)
	}

	w.notify(ctx, log, Notification{Submitter: submitter, MessageID: res.PrimaryID, PostLink: postLink})

	if err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return rec, nil
}

// Delete soft-deletes a record and removes it from the index.
func (w *Writer) Delete(ctx context.Context, messageID int64) (*model.PublishedRecord, error) {
	rec, err := w.store.SoftDeletePublished(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("soft delete: %w", err)
	}
	if err := w.index.Delete(ctx, messageID); err != nil {
		w.log.Warn("remove from index", "message_id", messageID, "error", err)
	}
	return rec, nil
}

// Index upserts rec into the search index, logging failures.
func (w *Writer) Index(ctx context.Context, rec *model.PublishedRecord) {
	w.indexRecord(ctx, w.log.With("message_id", rec.MessageID), rec)
}

func (w *Writer) indexRecord(ctx context.Context, log *slog.Logger, rec *model.PublishedRecord) {
	doc := search.Document{
		MessageID:   rec.MessageID,
		Title:       rec.Title,
		Note:        rec.Note,
		Tags:        rec.Tags,
		Link:        rec.Link,
		Caption:     rec.Caption,
		FileName:    rec.FileName,
		DisplayName: rec.DisplayName,
		PublishedAt: rec.PublishedAt,
	}
	if err := w.index.Upsert(ctx, doc); err != nil {
		log.Warn("index record", "error", err)
	}
}

func (w *Writer) notify(ctx context.Context, log *slog.Logger, n Notification) {
	if !w.opts.NotifyOwner || w.opts.OwnerID == 0 || w.notifier == nil {
		return
	}
	if err := w.notifier.NotifyOwner(ctx, n); err != nil {
		log.Warn("notify owner", "error", err)
	}
}
