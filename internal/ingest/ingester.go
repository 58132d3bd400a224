// Package ingest records channel posts that did not come through the intake
// flow, such as posts by other admins or bots.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"submit_bot/internal/model"
	"submit_bot/internal/storage"
)

// Outcome is the result of one ingestion.
type Outcome int

// Ingestion outcomes.
const (
	OutcomeIgnored Outcome = iota
	OutcomeSaved
	OutcomeDuplicate
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBusy:
		return "busy"
	default:
		return "ignored"
	}
}

// Indexer adds a saved record to the search index. Failures are logged by
// the implementation.
type Indexer interface {
	Index(ctx context.Context, rec *model.PublishedRecord)
}

// Ingester saves channel posts idempotently.
type Ingester struct {
	store    storage.Storage
	indexer  Indexer
	locks    *Locks
	log      *slog.Logger
	now      func() time.Time
	chatID   int64
	username string
}

// NewIngester creates an Ingester for the channel identified by channel,
// either "@name" or a numeric chat id.
func NewIngester(store storage.Storage, indexer Indexer, channel string, log *slog.Logger) (*Ingester, error) {
	in := &Ingester{
		store:   store,
		indexer: indexer,
		locks:   NewLocks(),
		log:     log,
		now:     time.Now,
	}
	channel = strings.TrimSpace(channel)
	if name, ok := strings.CutPrefix(channel, "@"); ok {
		in.username = strings.ToLower(name)
		return in, nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse channel id %q: %w", channel, err)
	}
	in.chatID = id
	return in, nil
}

// Matches reports whether p was posted in the configured channel.
func (in *Ingester) Matches(p Post) bool {
	if in.username != "" {
		return strings.EqualFold(p.ChatUsername, in.username)
	}
	return p.ChatID == in.chatID
}

// Ingest extracts and saves p. Concurrent calls for the same message id are
// collapsed: only the first proceeds, the rest return OutcomeBusy.
func (in *Ingester) Ingest(ctx context.Context, p Post) (Outcome, error) {
	log := in.log.With("message_id", p.MessageID, "edited", p.Edited)
	if !in.Matches(p) {
		log.Debug("post from another chat ignored", "chat_id", p.ChatID)
		return OutcomeIgnored, nil
	}
	if p.MessageID == 0 {
		log.Warn("post without message id ignored")
		return OutcomeIgnored, nil
	}

	if !in.locks.TryAcquire(p.MessageID) {
		log.Debug("post already being ingested")
		return OutcomeBusy, nil
	}
	defer in.locks.Release(p.MessageID)

	rec, warnings := Extract(p, in.now())
	if len(warnings) > 0 {
		log.Warn("post normalized", "warnings", strings.Join(warnings, "; "))
	}

	inserted, err := in.store.InsertPublishedIfAbsent(ctx, rec)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("save channel post %d: %w", p.MessageID, err)
	}
	if !inserted {
		log.Debug("post already recorded")
		return OutcomeDuplicate, nil
	}

	if in.indexer != nil {
		in.indexer.Index(ctx, rec)
	}
	log.Info("channel post recorded", "content_type", rec.ContentType)
	return OutcomeSaved, nil
}
