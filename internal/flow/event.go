// Package flow implements the intake state machine.
package flow

import (
	"fmt"

	"submit_bot/internal/model"
)

// EventKind enumerates the inputs the state machine reacts to.
type EventKind int

// Event kinds. EventText is a raw text reply that the engine resolves to the
// text event expected by the current state.
const (
	EventUnknown EventKind = iota
	EventStartIntake
	EventSelectMode
	EventSubmitMedia
	EventSubmitDocument
	EventFinishMedia
	EventFinishDocument
	EventSkipMedia
	EventSubmitTags
	EventSubmitLink
	EventSubmitTitle
	EventSubmitNote
	EventSkipOptional
	EventSubmitSpoiler
	EventCancel
	EventText
)

var eventNames = map[EventKind]string{
	EventStartIntake:    "start-intake",
	EventSelectMode:     "select-mode",
	EventSubmitMedia:    "submit-media-item",
	EventSubmitDocument: "submit-document-item",
	EventFinishMedia:    "finish-media",
	EventFinishDocument: "finish-document",
	EventSkipMedia:      "skip-media",
	EventSubmitTags:     "submit-tags",
	EventSubmitLink:     "submit-link",
	EventSubmitTitle:    "submit-title",
	EventSubmitNote:     "submit-note",
	EventSkipOptional:   "skip-remaining-optional",
	EventSubmitSpoiler:  "submit-spoiler-choice",
	EventCancel:         "cancel",
	EventText:           "text",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps an event name to its kind.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventNames {
		if n == name {
			return k, nil
		}
	}
	return EventUnknown, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// Event is one input to the state machine.
type Event struct {
	Kind       EventKind
	Text       string
	Attachment model.Attachment
}

// Action is the side effect the caller applies to the session.
type Action int

// Actions returned in a Decision.
const (
	ActionNone Action = iota
	ActionCreate
	ActionSetMode
	ActionAppendMedia
	ActionAppendDocument
	ActionAdvance
	ActionSetTags
	ActionSetLink
	ActionSetTitle
	ActionSetNote
	ActionSkipOptional
	ActionPublish
	ActionCancel
)

// Notice identifies the message shown to the contributor after an event.
type Notice int

// Notices. Prompt notices ask for the input of a state; the others report
// rejections and outcomes.
const (
	NoticeNone Notice = iota
	NoticeChooseMode
	NoticeSendDocuments
	NoticeSendMedia
	NoticeSendMediaOptional
	NoticeEnterTags
	NoticeEnterLink
	NoticeEnterTitle
	NoticeEnterNote
	NoticeChooseSpoiler
	NoticePublishing
	NoticeCancelled

	NoticeInvalidMode
	NoticeNeedDocument
	NoticeNeedMedia
	NoticeSkipMediaRefused
	NoticeInvalidTags
	NoticeInvalidLink
	NoticeInvalidSpoiler
	NoticeExpectAttachment
	NoticeWrongAttachment
	NoticeAtCapacity

	NoticeMediaAdded
	NoticeDocumentAdded
	NoticeInvalidType
	NoticeSessionExpired
	NoticeInternalError
	NoticePublished
	NoticePublishFailed
	NoticeBlacklisted
	NoticeNotAllowed
)

// Snapshot is the part of a session the engine needs to decide a transition.
type Snapshot struct {
	State         model.State
	Mode          model.Mode
	MediaCount    int
	DocumentCount int
}

// Decision is the outcome of one transition. Next equals From when the
// event was rejected.
type Decision struct {
	From       model.State
	Next       model.State
	Action     Action
	Notice     Notice
	Mode       model.Mode
	Tags       []string
	Value      string
	Spoiler    bool
	Attachment model.Attachment
}

// Advanced reports whether the decision moves the session to a new state.
func (d Decision) Advanced() bool {
	return d.Next != d.From
}
