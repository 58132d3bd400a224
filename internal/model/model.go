// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which attachment kinds a submission collects.
type Mode string

// Supported submission modes.
const (
	ModeMediaOnly    Mode = "MEDIA"
	ModeDocumentOnly Mode = "DOCUMENT"
	ModeMixed        Mode = "MIXED"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEDIA", "MEDIA_ONLY":
		return ModeMediaOnly, nil
	case "DOCUMENT", "DOCUMENT_ONLY":
		return ModeDocumentOnly, nil
	case "MIXED", "":
		return ModeMixed, nil
	}
	return "", fmt.Errorf("unknown mode %q, use: MEDIA, DOCUMENT, MIXED", s)
}

// MediaCap returns the maximum number of media items a session in this mode may hold.
func (m Mode) MediaCap() int {
	if m == ModeMediaOnly {
		return 50
	}
	return 10
}

// DocumentCap is the maximum number of documents in any mode.
const DocumentCap = 10

// State is a stage of the intake flow.
type State string

// Intake states. StateEnd is terminal and never persisted.
const (
	StateStartMode State = "START_MODE"
	StateDoc       State = "DOC"
	StateMedia     State = "MEDIA"
	StateTag       State = "TAG"
	StateLink      State = "LINK"
	StateTitle     State = "TITLE"
	StateNote      State = "NOTE"
	StateSpoiler   State = "SPOILER"
	StateEnd       State = "END"
)

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	switch s {
	case StateStartMode, StateDoc, StateMedia, StateTag, StateLink,
		StateTitle, StateNote, StateSpoiler, StateEnd:
		return true
	}
	return false
}

// MediaKind discriminates media attachments.
type MediaKind string

// Supported media kinds. Values match the transport's method names.
const (
	MediaImage     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
	MediaAudio     MediaKind = "audio"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaAnimation, MediaAudio:
		return true
	}
	return false
}

// MediaItem is a media attachment referenced by its transport file id.
type MediaItem struct {
	Kind MediaKind `cbor:"1,keyasint"`
	Ref  string    `cbor:"2,keyasint"`
}

// DocumentItem is a file attachment.
type DocumentItem struct {
	Kind        string `cbor:"1,keyasint"`
	Ref         string `cbor:"2,keyasint"`
	DisplayName string `cbor:"3,keyasint"`
}

// AttachmentKind is the shape an attachment arrived in.
type AttachmentKind string

// Attachment shapes as delivered by the transport.
const (
	AttachPhoto     AttachmentKind = "photo"
	AttachVideo     AttachmentKind = "video"
	AttachAnimation AttachmentKind = "animation"
	AttachAudio     AttachmentKind = "audio"
	AttachDocument  AttachmentKind = "document"
)

// Attachment is an inbound file before it is classified into a media or
// document item.
type Attachment struct {
	Kind     AttachmentKind
	Ref      string
	FileName string
	MIMEType string
}

// Session tracks one contributor's progress through the intake flow.
type Session struct {
	OwnerID       int64
	DisplayName   string
	State         State
	Mode          Mode
	MediaItems    []MediaItem
	DocumentItems []DocumentItem
	Tags          []string
	Link          string
	Title         string
	Note          string
	Spoiler       bool
	CreatedAt     time.Time
	LastActivity  time.Time
}

// ContentType classifies a published record.
type ContentType string

// Published content types.
const (
	ContentMedia    ContentType = "media"
	ContentDocument ContentType = "document"
	ContentMixed    ContentType = "mixed"
	ContentText     ContentType = "text"
)

// ContentTypeOf derives the content type from the attachment counts.
func ContentTypeOf(media, documents int) ContentType {
	switch {
	case media > 0 && documents > 0:
		return ContentMixed
	case media > 0:
		return ContentMedia
	case documents > 0:
		return ContentDocument
	default:
		return ContentText
	}
}

// PublishedRecord is the durable trace of a post in the output channel.
type PublishedRecord struct {
	MessageID         int64
	OwnerID           int64
	DisplayName       string
	Title             string
	Tags              []string
	Link              string
	Note              string
	ContentType       ContentType
	AttachmentRefs    []string
	Caption           string
	FileName          string
	PublishedAt       time.Time
	ViewCount         int
	ShareCount        int
	ReactionCount     int
	HeatScore         float64
	LastStatsUpdate   *time.Time
	RelatedMessageIDs []int64
	Deleted           bool
}

// BlacklistEntry is a contributor barred from submitting.
type BlacklistEntry struct {
	UserID  int64
	Reason  string
	AddedAt time.Time
}
