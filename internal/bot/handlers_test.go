package bot

import (
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"submit_bot/internal/flow"
	"submit_bot/internal/ingest"
	"submit_bot/internal/intake"
	"submit_bot/internal/model"
	"submit_bot/internal/record"
)

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		args    string
		want    int64
		wantErr bool
	}{
		{args: "42", want: 42},
		{args: "  7 trailing", want: 7},
		{args: "", wantErr: true},
		{args: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseIDArg(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIDArg(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIDArg(%q) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestParseBlacklistArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantID     int64
		wantReason string
		wantErr    bool
	}{
		{name: "id only", args: "12", wantID: 12},
		{name: "with reason", args: "12  posts spam ", wantID: 12, wantReason: "posts spam"},
		{name: "empty", args: "", wantErr: true},
		{name: "not a number", args: "bob spam", wantErr: true},
		{name: "negative", args: "-5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, reason, err := ParseBlacklistArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || reason != tt.wantReason {
				t.Errorf("got (%d, %q), want (%d, %q)", id, reason, tt.wantID, tt.wantReason)
			}
		})
	}
}

func TestEventFromMessage(t *testing.T) {
	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		want   flow.Event
		wantOK bool
	}{
		{
			name:   "text",
			msg:    &tgbotapi.Message{Text: "  #cats "},
			want:   flow.Event{Kind: flow.EventText, Text: "#cats"},
			wantOK: true,
		},
		{
			name: "largest photo",
			msg:  &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "s"}, {FileID: "l"}}},
			want: flow.Event{Kind: flow.EventSubmitMedia,
				Attachment: model.Attachment{Kind: model.AttachPhoto, Ref: "l"}},
			wantOK: true,
		},
		{
			name: "animation wins over document",
			msg: &tgbotapi.Message{
				Animation: &tgbotapi.Animation{FileID: "a", FileName: "x.mp4", MimeType: "video/mp4"},
				Document:  &tgbotapi.Document{FileID: "a"},
			},
			want: flow.Event{Kind: flow.EventSubmitMedia,
				Attachment: model.Attachment{Kind: model.AttachAnimation, Ref: "a", FileName: "x.mp4", MIMEType: "video/mp4"}},
			wantOK: true,
		},
		{
			name: "document",
			msg:  &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", FileName: "a.pdf", MimeType: "application/pdf"}},
			want: flow.Event{Kind: flow.EventSubmitDocument,
				Attachment: model.Attachment{Kind: model.AttachDocument, Ref: "d", FileName: "a.pdf", MIMEType: "application/pdf"}},
			wantOK: true,
		},
		{
			name: "sticker ignored",
			msg:  &tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EventFromMessage(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EventFromMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPostFromMessage(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID:       9,
		Chat:            &tgbotapi.Chat{ID: -100, UserName: "chan"},
		Date:            1722470400,
		Caption:         "caption text",
		MediaGroupID:    "g1",
		Audio:           &tgbotapi.Audio{FileID: "au", Title: "Song", Performer: "Band", MimeType: "audio/mpeg"},
		ForwardFromChat: &tgbotapi.Chat{Title: "Source channel"},
	}
	want := ingest.Post{
		MessageID:       9,
		ChatID:          -100,
		ChatUsername:    "chan",
		Text:            "caption text",
		Date:            "1722470400",
		Attachments:     []model.Attachment{{Kind: model.AttachAudio, Ref: "au", MIMEType: "audio/mpeg"}},
		AudioTitle:      "Song",
		AudioPerformer:  "Band",
		MediaGroupID:    "g1",
		ForwardFromChat: "Source channel",
		Edited:          true,
	}
	if diff := cmp.Diff(want, PostFromMessage(msg, true)); diff != "" {
		t.Errorf("PostFromMessage() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name string
		in   intake.Reply
		want string
	}{
		{
			name: "media counter uses mode cap",
			in:   intake.Reply{Notice: flow.NoticeMediaAdded, Mode: model.ModeMediaOnly, MediaCount: 3},
			want: "Media received (3/50).",
		},
		{
			name: "document counter",
			in:   intake.Reply{Notice: flow.NoticeDocumentAdded, DocumentCount: 2},
			want: "Document received (2/10).",
		},
		{
			name: "capacity in document step",
			in:   intake.Reply{Notice: flow.NoticeAtCapacity, State: model.StateDoc},
			want: "Limit reached. Use /done_doc to continue.",
		},
		{
			name: "invalid type with reason",
			in:   intake.Reply{Notice: flow.NoticeInvalidType, Reason: "only .pdf allowed"},
			want: "This file type is not accepted: only .pdf allowed",
		},
		{
			name: "published with link",
			in:   intake.Reply{Notice: flow.NoticePublished, PostLink: "https://t.me/chan/5"},
			want: "Published! https://t.me/chan/5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatReply(tt.in); got != tt.want {
				t.Errorf("FormatReply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryNoticeHasText(t *testing.T) {
	fallback := FormatReply(intake.Reply{Notice: flow.NoticeNone})
	for n := flow.NoticeChooseMode; n <= flow.NoticeNotAllowed; n++ {
		if got := FormatReply(intake.Reply{Notice: n, Mode: model.ModeMixed}); got == fallback {
			t.Errorf("notice %d has no text", n)
		}
	}
}

func TestFormatOwnerNotification(t *testing.T) {
	got := FormatOwnerNotification(record.Notification{
		Submitter: record.Submitter{ID: 7, FullName: "Alice A"},
		PostLink:  "https://t.me/chan/5",
	})
	for _, want := range []string{"User ID: 7", "Name: Alice A", "Post: https://t.me/chan/5", "/blacklist_add 7"} {
		requireContains(t, got, want)
	}
	if strings.Contains(got, "Username:") {
		t.Error("empty username rendered")
	}
}

func TestFormatBlacklist(t *testing.T) {
	if got := FormatBlacklist(nil); got != "The blacklist is empty." {
		t.Errorf("empty list = %q", got)
	}
	got := FormatBlacklist([]model.BlacklistEntry{
		{UserID: 3, Reason: "spam", AddedAt: time.Date(2024, 8, 1, 9, 30, 0, 0, time.UTC)},
		{UserID: 4},
	})
	want := "Blacklisted users (2):\n\n3: spam (since 2024-08-01 09:30 UTC)\n4"
	if got != want {
		t.Errorf("FormatBlacklist() = %q, want %q", got, want)
	}
}
