package flow

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"submit_bot/internal/model"
)

// Sentinel errors returned by Transition.
var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidState = errors.New("invalid state")
)

// Field caps applied to free-text answers.
const (
	MaxTitleLength = 100
	MaxNoteLength  = 600
)

// Limits configures tag validation.
type Limits struct {
	MaxTags      int
	MaxTagLength int
}

type handler func(e *Engine, s Snapshot, ev Event) Decision

// Engine is the intake state machine. It holds no session data; every call
// to Transition is a pure function of its arguments.
type Engine struct {
	limits   Limits
	handlers map[EventKind]handler
	textAs   map[model.State]EventKind
}

// New creates an engine with its dispatch table.
func New(limits Limits) *Engine {
	if limits.MaxTags <= 0 {
		limits.MaxTags = 10
	}
	if limits.MaxTagLength <= 0 {
		limits.MaxTagLength = 30
	}
	return &Engine{
		limits: limits,
		handlers: map[EventKind]handler{
			EventStartIntake:    (*Engine).startIntake,
			EventSelectMode:     (*Engine).selectMode,
			EventSubmitMedia:    (*Engine).submitMedia,
			EventSubmitDocument: (*Engine).submitDocument,
			EventFinishMedia:    (*Engine).finishMedia,
			EventFinishDocument: (*Engine).finishDocument,
			EventSkipMedia:      (*Engine).skipMedia,
			EventSubmitTags:     (*Engine).submitTags,
			EventSubmitLink:     (*Engine).submitLink,
			EventSubmitTitle:    (*Engine).submitTitle,
			EventSubmitNote:     (*Engine).submitNote,
			EventSkipOptional:   (*Engine).skipOptional,
			EventSubmitSpoiler:  (*Engine).submitSpoiler,
			EventCancel:         (*Engine).cancel,
		},
		textAs: map[model.State]EventKind{
			model.StateStartMode: EventSelectMode,
			model.StateTag:       EventSubmitTags,
			model.StateLink:      EventSubmitLink,
			model.StateTitle:     EventSubmitTitle,
			model.StateNote:      EventSubmitNote,
			model.StateSpoiler:   EventSubmitSpoiler,
		},
	}
}

// Transition decides how the session described by s reacts to ev.
func (e *Engine) Transition(s Snapshot, ev Event) (Decision, error) {
	if ev.Kind == EventText {
		if ev.Kind = e.textAs[s.State]; ev.Kind == EventUnknown {
			if s.State == model.StateMedia || s.State == model.StateDoc {
				return reject(s, NoticeExpectAttachment), nil
			}
			return Decision{}, fmt.Errorf("%w: %q", ErrInvalidState, s.State)
		}
	}

	h, ok := e.handlers[ev.Kind]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
	if ev.Kind != EventStartIntake && (!s.State.Valid() || s.State == model.StateEnd) {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidState, s.State)
	}
	return h(e, s, ev), nil
}

// InitialState returns the state a new session starts in for mode.
func InitialState(mode model.Mode) model.State {
	switch mode {
	case model.ModeMediaOnly:
		return model.StateMedia
	case model.ModeDocumentOnly:
		return model.StateDoc
	default:
		return model.StateStartMode
	}
}

// Prompt returns the notice that asks for the input of state in mode.
func Prompt(state model.State, mode model.Mode) Notice {
	switch state {
	case model.StateStartMode:
		return NoticeChooseMode
	case model.StateDoc:
		return NoticeSendDocuments
	case model.StateMedia:
		if requiresMedia(mode) {
			return NoticeSendMedia
		}
		return NoticeSendMediaOptional
	case model.StateTag:
		return NoticeEnterTags
	case model.StateLink:
		return NoticeEnterLink
	case model.StateTitle:
		return NoticeEnterTitle
	case model.StateNote:
		return NoticeEnterNote
	case model.StateSpoiler:
		return NoticeChooseSpoiler
	}
	return NoticeNone
}

func requiresMedia(mode model.Mode) bool {
	return mode == model.ModeMediaOnly
}

func advance(s Snapshot, next model.State, action Action) Decision {
	return Decision{From: s.State, Next: next, Action: action, Notice: Prompt(next, s.Mode), Mode: s.Mode}
}

func reject(s Snapshot, notice Notice) Decision {
	return Decision{From: s.State, Next: s.State, Action: ActionNone, Notice: notice, Mode: s.Mode}
}

func reprompt(s Snapshot) Decision {
	return reject(s, Prompt(s.State, s.Mode))
}

func (e *Engine) startIntake(s Snapshot, _ Event) Decision {
	next := InitialState(s.Mode)
	d := advance(s, next, ActionCreate)
	d.From = ""
	return d
}

func (e *Engine) selectMode(s Snapshot, ev Event) Decision {
	if s.State != model.StateStartMode {
		return reprompt(s)
	}
	mode, ok := ParseModeChoice(ev.Text)
	if !ok {
		return reject(s, NoticeInvalidMode)
	}
	s.Mode = mode
	return advance(s, InitialState(mode), ActionSetMode)
}

func (e *Engine) submitMedia(s Snapshot, ev Event) Decision {
	if s.State != model.StateMedia {
		if s.State == model.StateDoc {
			return reject(s, NoticeWrongAttachment)
		}
		return reprompt(s)
	}
	if s.MediaCount >= s.Mode.MediaCap() {
		return reject(s, NoticeAtCapacity)
	}
	d := reject(s, NoticeMediaAdded)
	d.Action = ActionAppendMedia
	d.Attachment = ev.Attachment
	return d
}

// submitDocument accepts documents in DOC. In MEDIA the document is handed
// to the accumulator as a media candidate, which reclassifies GIF and audio
// files and rejects the rest.
func (e *Engine) submitDocument(s Snapshot, ev Event) Decision {
	switch s.State {
	case model.StateDoc:
		if s.DocumentCount >= model.DocumentCap {
			return reject(s, NoticeAtCapacity)
		}
		d := reject(s, NoticeDocumentAdded)
		d.Action = ActionAppendDocument
		d.Attachment = ev.Attachment
		return d
	case model.StateMedia:
		return e.submitMedia(s, ev)
	}
	return reprompt(s)
}

func (e *Engine) finishDocument(s Snapshot, _ Event) Decision {
	if s.State != model.StateDoc {
		return reprompt(s)
	}
	if s.DocumentCount == 0 {
		return reject(s, NoticeNeedDocument)
	}
	return advance(s, model.StateMedia, ActionAdvance)
}

func (e *Engine) finishMedia(s Snapshot, _ Event) Decision {
	if s.State != model.StateMedia {
		return reprompt(s)
	}
	if requiresMedia(s.Mode) && s.MediaCount == 0 {
		return reject(s, NoticeNeedMedia)
	}
	return advance(s, model.StateTag, ActionAdvance)
}

func (e *Engine) skipMedia(s Snapshot, _ Event) Decision {
	if s.State != model.StateMedia {
		return reprompt(s)
	}
	if requiresMedia(s.Mode) {
		return reject(s, NoticeSkipMediaRefused)
	}
	return advance(s, model.StateTag, ActionAdvance)
}

func (e *Engine) submitTags(s Snapshot, ev Event) Decision {
	if s.State != model.StateTag {
		return reprompt(s)
	}
	tags := NormalizeTags(ev.Text, e.limits.MaxTags, e.limits.MaxTagLength)
	if len(tags) == 0 {
		return reject(s, NoticeInvalidTags)
	}
	d := advance(s, model.StateLink, ActionSetTags)
	d.Tags = tags
	return d
}

func (e *Engine) submitLink(s Snapshot, ev Event) Decision {
	if s.State != model.StateLink {
		return reprompt(s)
	}
	text := strings.TrimSpace(ev.Text)
	if IsNoneAnswer(text) {
		return advance(s, model.StateTitle, ActionSetLink)
	}
	if !ValidLink(text) {
		return reject(s, NoticeInvalidLink)
	}
	d := advance(s, model.StateTitle, ActionSetLink)
	d.Value = text
	return d
}

func (e *Engine) submitTitle(s Snapshot, ev Event) Decision {
	if s.State != model.StateTitle {
		return reprompt(s)
	}
	d := advance(s, model.StateNote, ActionSetTitle)
	d.Value = freeText(ev.Text, MaxTitleLength)
	return d
}

func (e *Engine) submitNote(s Snapshot, ev Event) Decision {
	if s.State != model.StateNote {
		return reprompt(s)
	}
	d := advance(s, model.StateSpoiler, ActionSetNote)
	d.Value = freeText(ev.Text, MaxNoteLength)
	return d
}

func (e *Engine) skipOptional(s Snapshot, _ Event) Decision {
	switch s.State {
	case model.StateLink, model.StateTitle, model.StateNote:
		return advance(s, model.StateSpoiler, ActionSkipOptional)
	}
	return reprompt(s)
}

func (e *Engine) submitSpoiler(s Snapshot, ev Event) Decision {
	if s.State != model.StateSpoiler {
		return reprompt(s)
	}
	spoiler, ok := ParseSpoilerChoice(ev.Text)
	if !ok {
		return reject(s, NoticeInvalidSpoiler)
	}
	d := advance(s, model.StateEnd, ActionPublish)
	d.Notice = NoticePublishing
	d.Spoiler = spoiler
	return d
}

func (e *Engine) cancel(s Snapshot, _ Event) Decision {
	d := advance(s, model.StateEnd, ActionCancel)
	d.Notice = NoticeCancelled
	return d
}

// IsNoneAnswer reports whether text declines an optional field.
func IsNoneAnswer(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "none", "no", "-", "无":
		return true
	}
	return false
}

// ValidLink reports whether text is an absolute http or https URL.
func ValidLink(text string) bool {
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ParseSpoilerChoice interprets a yes/no answer.
func ParseSpoilerChoice(text string) (spoiler, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "是":
		return true, true
	case "no", "n", "否":
		return false, true
	}
	return false, false
}

// ParseModeChoice interprets the answer to the mode question. Leading emoji
// and punctuation are ignored so keyboard labels parse too.
func ParseModeChoice(text string) (model.Mode, bool) {
	choice := strings.ToLower(strings.TrimFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	switch choice {
	case "media", "photo", "photos", "1", "媒体":
		return model.ModeMediaOnly, true
	case "document", "documents", "doc", "file", "files", "2", "文档":
		return model.ModeDocumentOnly, true
	}
	return "", false
}

func freeText(text string, max int) string {
	text = strings.TrimSpace(text)
	if IsNoneAnswer(text) {
		return ""
	}
	return truncateRunes(text, max)
}
