// Package content builds the attachment lists of an intake session.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"submit_bot/internal/model"
	"submit_bot/internal/storage"
)

// ErrAtCapacity is returned when a list already holds the mode's maximum.
var ErrAtCapacity = errors.New("attachment list at capacity")

// ErrInvalidType is matched by every *TypeError.
var ErrInvalidType = errors.New("invalid attachment type")

// TypeError reports an attachment that may not be added to the session.
type TypeError struct {
	Reason string
}

func (e *TypeError) Error() string {
	return "invalid attachment type: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidType) match.
func (e *TypeError) Is(target error) bool {
	return target == ErrInvalidType
}

// Validator checks documents against the configured type allowlist.
type Validator interface {
	Validate(fileName, mimeType string) (bool, string)
}

// Accumulator appends attachments to stored sessions.
type Accumulator struct {
	store     storage.Storage
	validator Validator
	now       func() time.Time
}

// NewAccumulator creates an Accumulator. A nil validator accepts every document.
func NewAccumulator(store storage.Storage, validator Validator) *Accumulator {
	return &Accumulator{store: store, validator: validator, now: time.Now}
}

// Classify maps an attachment to a media item. Documents whose MIME type is
// image/gif become animations and audio/* documents become audio.
func Classify(a model.Attachment) (model.MediaItem, bool) {
	switch a.Kind {
	case model.AttachPhoto:
		return model.MediaItem{Kind: model.MediaImage, Ref: a.Ref}, true
	case model.AttachVideo:
		return model.MediaItem{Kind: model.MediaVideo, Ref: a.Ref}, true
	case model.AttachAnimation:
		return model.MediaItem{Kind: model.MediaAnimation, Ref: a.Ref}, true
	case model.AttachAudio:
		return model.MediaItem{Kind: model.MediaAudio, Ref: a.Ref}, true
	case model.AttachDocument:
		mime := strings.ToLower(a.MIMEType)
		switch {
		case mime == "image/gif":
			return model.MediaItem{Kind: model.MediaAnimation, Ref: a.Ref}, true
		case strings.HasPrefix(mime, "audio/"):
			return model.MediaItem{Kind: model.MediaAudio, Ref: a.Ref}, true
		}
	}
	return model.MediaItem{}, false
}

// AppendMedia adds a media attachment to the owner's session and returns the
// new media count.
func (a *Accumulator) AppendMedia(ctx context.Context, ownerID int64, att model.Attachment) (int, error) {
	item, ok := Classify(att)
	if !ok {
		return 0, &TypeError{Reason: "not a photo, video, animation or audio file"}
	}

	sess, err := a.store.UpdateSession(ctx, ownerID, func(s *model.Session) error {
		if len(s.MediaItems) >= s.Mode.MediaCap() {
			return ErrAtCapacity
		}
		s.MediaItems = append(s.MediaItems, item)
		s.LastActivity = a.now()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append media: %w", err)
	}
	return len(sess.MediaItems), nil
}

// AppendDocument adds a document to the owner's session after checking it
// against the allowlist and returns the new document count.
func (a *Accumulator) AppendDocument(ctx context.Context, ownerID int64, att model.Attachment) (int, error) {
	if att.Kind != model.AttachDocument {
		return 0, &TypeError{Reason: "not a document"}
	}
	if a.validator != nil {
		if ok, reason := a.validator.Validate(att.FileName, att.MIMEType); !ok {
			return 0, &TypeError{Reason: reason}
		}
	}

	name := att.FileName
	if name == "" {
		name = "document"
	}
	item := model.DocumentItem{Kind: string(model.AttachDocument), Ref: att.Ref, DisplayName: name}

	sess, err := a.store.UpdateSession(ctx, ownerID, func(s *model.Session) error {
		if len(s.DocumentItems) >= model.DocumentCap {
			return ErrAtCapacity
		}
		s.DocumentItems = append(s.DocumentItems, item)
		s.LastActivity = a.now()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append document: %w", err)
	}
	return len(sess.DocumentItems), nil
}
