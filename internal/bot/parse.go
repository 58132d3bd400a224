package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"submit_bot/internal/flow"
	"submit_bot/internal/ingest"
	"submit_bot/internal/model"
	"submit_bot/internal/record"
)

// commandEvents maps contributor commands to state machine events.
var commandEvents = map[string]flow.EventKind{
	"submit":        flow.EventStartIntake,
	"done_doc":      flow.EventFinishDocument,
	"done_media":    flow.EventFinishMedia,
	"skip_media":    flow.EventSkipMedia,
	"skip_optional": flow.EventSkipOptional,
	"cancel":        flow.EventCancel,
}

func flowEvent(kind flow.EventKind) flow.Event {
	return flow.Event{Kind: kind}
}

// AttachmentFromMessage extracts the file carried by msg. Photos resolve to
// their largest size.
func AttachmentFromMessage(msg *tgbotapi.Message) (model.Attachment, bool) {
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return model.Attachment{Kind: model.AttachPhoto, Ref: largest.FileID}, true
	case msg.Animation != nil:
		a := msg.Animation
		return model.Attachment{Kind: model.AttachAnimation, Ref: a.FileID, FileName: a.FileName, MIMEType: a.MimeType}, true
	case msg.Video != nil:
		v := msg.Video
		return model.Attachment{Kind: model.AttachVideo, Ref: v.FileID, FileName: v.FileName, MIMEType: v.MimeType}, true
	case msg.Audio != nil:
		a := msg.Audio
		return model.Attachment{Kind: model.AttachAudio, Ref: a.FileID, FileName: a.FileName, MIMEType: a.MimeType}, true
	case msg.Document != nil:
		d := msg.Document
		return model.Attachment{Kind: model.AttachDocument, Ref: d.FileID, FileName: d.FileName, MIMEType: d.MimeType}, true
	}
	return model.Attachment{}, false
}

// EventFromMessage turns a non-command private message into an intake event.
func EventFromMessage(msg *tgbotapi.Message) (flow.Event, bool) {
	if att, ok := AttachmentFromMessage(msg); ok {
		kind := flow.EventSubmitMedia
		if att.Kind == model.AttachDocument {
			kind = flow.EventSubmitDocument
		}
		return flow.Event{Kind: kind, Attachment: att}, true
	}
	if text := strings.TrimSpace(msg.Text); text != "" {
		return flow.Event{Kind: flow.EventText, Text: text}, true
	}
	return flow.Event{}, false
}

// PostFromMessage converts a channel message for ingestion.
func PostFromMessage(msg *tgbotapi.Message, edited bool) ingest.Post {
	p := ingest.Post{
		MessageID:    int64(msg.MessageID),
		Text:         msg.Text,
		Date:         strconv.Itoa(msg.Date),
		MediaGroupID: msg.MediaGroupID,
		Edited:       edited,
	}
	if p.Text == "" {
		p.Text = msg.Caption
	}
	if msg.Chat != nil {
		p.ChatID = msg.Chat.ID
		p.ChatUsername = msg.Chat.UserName
	}
	if att, ok := AttachmentFromMessage(msg); ok {
		p.Attachments = []model.Attachment{att}
	}
	if msg.Audio != nil {
		p.AudioTitle = msg.Audio.Title
		p.AudioPerformer = msg.Audio.Performer
	}
	switch {
	case msg.ForwardFromChat != nil:
		p.ForwardFromChat = msg.ForwardFromChat.Title
	case msg.ForwardFrom != nil:
		p.ForwardFromUser = displayName(msg.ForwardFrom)
	case msg.ForwardSenderName != "":
		p.ForwardFromUser = msg.ForwardSenderName
	}
	return p
}

func submitterOf(u *tgbotapi.User) record.Submitter {
	if u == nil {
		return record.Submitter{}
	}
	return record.Submitter{ID: u.ID, Username: u.UserName, FullName: displayName(u)}
}

func displayName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseBlacklistArgs extracts a user ID and an optional reason.
func ParseBlacklistArgs(args string) (int64, string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if parts[0] == "" {
		return 0, "", fmt.Errorf("usage: /%s <user_id> [reason]", cmdBlacklistAdd)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid user ID %q", parts[0])
	}
	var reason string
	if len(parts) == 2 {
		reason = strings.TrimSpace(parts[1])
	}
	return id, reason, nil
}
