// Package search defines the full-text index collaborator.
package search

import (
	"context"
	"log/slog"
	"time"
)

// Document is the indexed view of a published record.
type Document struct {
	MessageID   int64
	Title       string
	Note        string
	Tags        []string
	Link        string
	Caption     string
	FileName    string
	DisplayName string
	PublishedAt time.Time
}

// Index is a full-text index of published posts. Calls are best-effort.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, messageID int64) error
}

// Nop discards every call, optionally logging it at debug level.
type Nop struct {
	Log *slog.Logger
}

// Upsert implements Index.
func (n Nop) Upsert(_ context.Context, doc Document) error {
	if n.Log != nil {
		n.Log.Debug("index upsert", "message_id", doc.MessageID)
	}
	return nil
}

// Delete implements Index.
func (n Nop) Delete(_ context.Context, messageID int64) error {
	if n.Log != nil {
		n.Log.Debug("index delete", "message_id", messageID)
	}
	return nil
}
