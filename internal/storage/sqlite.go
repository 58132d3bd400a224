package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"submit_bot/internal/model"
	"submit_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are private to the connection that created them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const sessionColumns = `owner_id, display_name, state, mode, media_items, document_items, tags,
	link, title, note, spoiler, created_at, last_activity`

// CreateSession inserts s, replacing any session the owner already had.
func (s *SQLite) CreateSession(ctx context.Context, sess *model.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the owner's session or ErrSessionNotFound.
func (s *SQLite) GetSession(ctx context.Context, ownerID int64) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE owner_id = ?`, ownerID)
	return scanSession(row)
}

// UpdateSession loads the owner's session, applies fn and writes the result
// back inside one transaction. If fn returns an error nothing is written.
func (s *SQLite) UpdateSession(ctx context.Context, ownerID int64, fn func(*model.Session) error) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE owner_id = ?`, ownerID))
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.OwnerID = ownerID

	args, err := sessionArgs(sess)
	if err != nil {
		return nil, err
	}
	// Drop owner_id from the front and append it for the WHERE clause.
	args = append(args[1:], ownerID)
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET display_name = ?, state = ?, mode = ?, media_items = ?, document_items = ?,
		 tags = ?, link = ?, title = ?, note = ?, spoiler = ?, created_at = ?, last_activity = ?
		 WHERE owner_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return sess, nil
}

// DeleteSession removes the owner's session. It reports whether a row existed.
func (s *SQLite) DeleteSession(ctx context.Context, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteIdleSessions removes every session whose last activity is before cutoff.
func (s *SQLite) DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_activity < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const recordColumns = `message_id, owner_id, display_name, title, tags, link, note, content_type,
	attachment_refs, caption, filename, published_at, view_count, share_count, reaction_count,
	heat_score, last_stats_update, related_message_ids, is_deleted`

// SavePublished inserts rec and deletes the owner's session in one transaction.
func (s *SQLite) SavePublished(ctx context.Context, rec *model.PublishedRecord, ownerID int64) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO published_posts (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// InsertPublishedIfAbsent inserts rec unless a record with the same message
// id exists. It reports whether a row was written.
func (s *SQLite) InsertPublishedIfAbsent(ctx context.Context, rec *model.PublishedRecord) (bool, error) {
	args, err := recordArgs(rec)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM published_posts WHERE message_id = ?`, rec.MessageID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check record: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO published_posts (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit record: %w", err)
	}
	return true, nil
}

// GetPublished returns a record by its message id or ErrRecordNotFound.
func (s *SQLite) GetPublished(ctx context.Context, messageID int64) (*model.PublishedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM published_posts WHERE message_id = ?`, messageID)
	return scanRecord(row)
}

// SoftDeletePublished flags a record as deleted and returns it.
func (s *SQLite) SoftDeletePublished(ctx context.Context, messageID int64) (*model.PublishedRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM published_posts WHERE message_id = ?`, messageID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE published_posts SET is_deleted = 1 WHERE message_id = ?`, messageID); err != nil {
		return nil, fmt.Errorf("soft delete record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit soft delete: %w", err)
	}
	rec.Deleted = true
	return rec, nil
}

// AddBlacklist inserts or replaces a blacklist entry and populates AddedAt.
func (s *SQLite) AddBlacklist(ctx context.Context, e *model.BlacklistEntry) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blacklist (user_id, reason, added_at) VALUES (?, ?, ?)`,
		e.UserID, e.Reason, now,
	)
	if err != nil {
		return fmt.Errorf("insert blacklist: %w", err)
	}
	e.AddedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// RemoveBlacklist deletes an entry. It reports whether the user was listed.
func (s *SQLite) RemoveBlacklist(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBlacklist returns all entries, newest first.
func (s *SQLite) ListBlacklist(ctx context.Context) ([]model.BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, reason, added_at FROM blacklist ORDER BY added_at DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		var added string
		if err := rows.Scan(&e.UserID, &e.Reason, &added); err != nil {
			return nil, fmt.Errorf("scan blacklist: %w", err)
		}
		e.AddedAt, _ = time.Parse(timeLayout, added)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func sessionArgs(sess *model.Session) ([]any, error) {
	media, err := encodeList(sess.MediaItems)
	if err != nil {
		return nil, err
	}
	docs, err := encodeList(sess.DocumentItems)
	if err != nil {
		return nil, err
	}
	tags, err := encodeList(sess.Tags)
	if err != nil {
		return nil, err
	}
	return []any{
		sess.OwnerID, sess.DisplayName, string(sess.State), string(sess.Mode), media, docs, tags,
		sess.Link, sess.Title, sess.Note, boolToInt(sess.Spoiler),
		sess.CreatedAt.UTC().Format(timeLayout), sess.LastActivity.UTC().Format(timeLayout),
	}, nil
}

func scanSession(row scannable) (*model.Session, error) {
	var sess model.Session
	var state, mode, created, lastActivity string
	var displayName, link, title, note sql.NullString
	var media, docs, tags []byte
	var spoiler int
	err := row.Scan(&sess.OwnerID, &displayName, &state, &mode, &media, &docs, &tags,
		&link, &title, &note, &spoiler, &created, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.DisplayName = displayName.String
	sess.State = model.State(state)
	sess.Mode = model.Mode(mode)
	sess.Link = link.String
	sess.Title = title.String
	sess.Note = note.String
	sess.Spoiler = spoiler == 1
	sess.CreatedAt, _ = time.Parse(timeLayout, created)
	sess.LastActivity, _ = time.Parse(timeLayout, lastActivity)

	if sess.MediaItems, err = decodeList[model.MediaItem](media); err != nil {
		return nil, fmt.Errorf("media items: %w", err)
	}
	if sess.DocumentItems, err = decodeList[model.DocumentItem](docs); err != nil {
		return nil, fmt.Errorf("document items: %w", err)
	}
	if sess.Tags, err = decodeList[string](tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	return &sess, nil
}

func recordArgs(rec *model.PublishedRecord) ([]any, error) {
	refs := rec.AttachmentRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode attachment refs: %w", err)
	}
	related := rec.RelatedMessageIDs
	if related == nil {
		related = []int64{}
	}
	relatedJSON, err := json.Marshal(related)
	if err != nil {
		return nil, fmt.Errorf("encode related ids: %w", err)
	}
	var lastStats *string
	if rec.LastStatsUpdate != nil {
		v := rec.LastStatsUpdate.UTC().Format(timeLayout)
		lastStats = &v
	}
	contentType := rec.ContentType
	if contentType == "" {
		contentType = model.ContentText
	}
	return []any{
		rec.MessageID, rec.OwnerID, rec.DisplayName, rec.Title, strings.Join(rec.Tags, " "),
		rec.Link, rec.Note, string(contentType), string(refsJSON), rec.Caption, rec.FileName,
		rec.PublishedAt.UTC().Format(timeLayout), rec.ViewCount, rec.ShareCount, rec.ReactionCount,
		rec.HeatScore, lastStats, string(relatedJSON), boolToInt(rec.Deleted),
	}, nil
}

func scanRecord(row scannable) (*model.PublishedRecord, error) {
	var rec model.PublishedRecord
	var tags, contentType, refs, published, related string
	var lastStats sql.NullString
	var deleted int
	err := row.Scan(&rec.MessageID, &rec.OwnerID, &rec.DisplayName, &rec.Title, &tags, &rec.Link,
		&rec.Note, &contentType, &refs, &rec.Caption, &rec.FileName, &published, &rec.ViewCount,
		&rec.ShareCount, &rec.ReactionCount, &rec.HeatScore, &lastStats, &related, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.Tags = strings.Fields(tags)
	rec.ContentType = model.ContentType(contentType)
	rec.Deleted = deleted == 1
	rec.PublishedAt, _ = time.Parse(timeLayout, published)
	if lastStats.Valid {
		t, _ := time.Parse(timeLayout, lastStats.String)
		rec.LastStatsUpdate = &t
	}
	if err := json.Unmarshal([]byte(refs), &rec.AttachmentRefs); err != nil {
		return nil, fmt.Errorf("decode attachment refs: %w", err)
	}
	if err := json.Unmarshal([]byte(related), &rec.RelatedMessageIDs); err != nil {
		return nil, fmt.Errorf("decode related ids: %w", err)
	}
	return &rec, nil
}
