package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"submit_bot/internal/flow"
	"submit_bot/internal/intake"
)

// Replier sends intake replies to contributors' private chats.
type Replier struct {
	api telegramAPI
	log *slog.Logger
}

// NewReplier creates a Replier.
func NewReplier(api telegramAPI, log *slog.Logger) *Replier {
	return &Replier{api: api, log: log}
}

// Reply sends the text for r, with a keyboard when the prompt offers choices.
func (r *Replier) Reply(_ context.Context, chatID int64, rep intake.Reply) {
	msg := tgbotapi.NewMessage(chatID, FormatReply(rep))
	msg.DisableWebPagePreview = true
	if markup := replyMarkup(rep.Notice); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := r.api.Send(msg); err != nil {
		r.log.Error("send reply", "chat_id", chatID, "notice", int(rep.Notice), "error", err)
	}
}

// clearsKeyboard lists the replies that follow a keyboard prompt.
var clearsKeyboard = map[flow.Notice]bool{
	flow.NoticeSendMedia:         true,
	flow.NoticeSendMediaOptional: true,
	flow.NoticeSendDocuments:     true,
	flow.NoticePublishing:        true,
	flow.NoticeCancelled:         true,
	flow.NoticeSessionExpired:    true,
	flow.NoticeInternalError:     true,
}

func replyMarkup(n flow.Notice) any {
	switch n {
	case flow.NoticeChooseMode, flow.NoticeInvalidMode:
		return tgbotapi.NewOneTimeReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelMedia),
			tgbotapi.NewKeyboardButton(labelDocument),
		))
	case flow.NoticeChooseSpoiler, flow.NoticeInvalidSpoiler:
		return tgbotapi.NewOneTimeReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelSpoilerYes),
			tgbotapi.NewKeyboardButton(labelSpoilerNo),
		))
	}
	if clearsKeyboard[n] {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}
