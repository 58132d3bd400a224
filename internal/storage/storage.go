// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"submit_bot/internal/model"
)

// Sentinel errors returned by Storage implementations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRecordNotFound  = errors.New("published record not found")
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, ownerID int64) (*model.Session, error)
	UpdateSession(ctx context.Context, ownerID int64, fn func(*model.Session) error) (*model.Session, error)
	DeleteSession(ctx context.Context, ownerID int64) (bool, error)
	DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int64, error)

	SavePublished(ctx context.Context, rec *model.PublishedRecord, ownerID int64) error
	InsertPublishedIfAbsent(ctx context.Context, rec *model.PublishedRecord) (bool, error)
	GetPublished(ctx context.Context, messageID int64) (*model.PublishedRecord, error)
	SoftDeletePublished(ctx context.Context, messageID int64) (*model.PublishedRecord, error)

	AddBlacklist(ctx context.Context, e *model.BlacklistEntry) error
	RemoveBlacklist(ctx context.Context, userID int64) (bool, error)
	ListBlacklist(ctx context.Context) ([]model.BlacklistEntry, error)

	Close() error
}
