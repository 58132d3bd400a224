package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"submit_bot/internal/model"
	"submit_bot/internal/publish"
	"submit_bot/internal/record"
)

// Channel identifies the output channel by username or numeric chat id.
type Channel struct {
	ID       int64
	Username string
}

// ParseChannel accepts "@name" or a numeric chat id.
func ParseChannel(s string) (Channel, error) {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutPrefix(s, "@"); ok && name != "" {
		return Channel{Username: name}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Channel{}, fmt.Errorf("parse channel %q: want @name or a numeric id", s)
	}
	return Channel{ID: id}, nil
}

func (c Channel) chatRef() string {
	if c.Username != "" {
		return "@" + c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// PostLink returns the public link of a channel message. Private channels
// get the t.me/c form.
func (c Channel) PostLink(messageID int64) string {
	if c.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", c.Username, messageID)
	}
	internal := strings.TrimPrefix(strconv.FormatInt(c.ID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", internal, messageID)
}

// Transport sends to the output channel and notifies the bot owner.
type Transport struct {
	api     telegramAPI
	channel Channel
	ownerID int64
	log     *slog.Logger
}

// NewTransport creates a Transport for channel.
func NewTransport(api telegramAPI, channel Channel, ownerID int64, log *slog.Logger) *Transport {
	return &Transport{api: api, channel: channel, ownerID: ownerID, log: log}
}

// Channel returns the output channel.
func (t *Transport) Channel() Channel {
	return t.channel
}

var singleMethods = map[model.AttachmentKind]string{
	model.AttachPhoto:     "sendPhoto",
	model.AttachVideo:     "sendVideo",
	model.AttachAnimation: "sendAnimation",
	model.AttachAudio:     "sendAudio",
	model.AttachDocument:  "sendDocument",
}

func spoilerCapable(kind model.AttachmentKind) bool {
	return kind == model.AttachPhoto || kind == model.AttachVideo || kind == model.AttachAnimation
}

// SendSingle sends one attachment. The spoiler flag is passed inline for
// photos, videos and animations.
func (t *Transport) SendSingle(ctx context.Context, item publish.Item, opts publish.SendOptions) (int64, error) {
	method, ok := singleMethods[item.Kind]
	if !ok {
		return 0, fmt.Errorf("unsupported attachment kind %q", item.Kind)
	}
	params := t.baseParams(opts)
	params[string(item.Kind)] = item.Ref
	if item.Caption != "" {
		params["caption"] = item.Caption
		params["parse_mode"] = tgbotapi.ModeHTML
	}
	if opts.Spoiler && spoilerCapable(item.Kind) {
		params.AddBool("has_spoiler", true)
	}

	var msg tgbotapi.Message
	if err := t.call(ctx, method, params, &msg); err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

type inputMedia struct {
	Type       string `json:"type"`
	Media      string `json:"media"`
	Caption    string `json:"caption,omitempty"`
	ParseMode  string `json:"parse_mode,omitempty"`
	HasSpoiler bool   `json:"has_spoiler,omitempty"`
}

// albumType maps an attachment to its album member type. Albums have no
// animation member, so animations travel as videos.
func albumType(kind model.AttachmentKind) string {
	if kind == model.AttachAnimation {
		return string(model.AttachVideo)
	}
	return string(kind)
}

// SendBatch sends items as one album. A one-item batch falls back to
// SendSingle since albums need at least two members.
func (t *Transport) SendBatch(ctx context.Context, items []publish.Item, opts publish.SendOptions) ([]int64, error) {
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("empty batch")
	case 1:
		id, err := t.SendSingle(ctx, items[0], opts)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	}

	media := make([]inputMedia, len(items))
	for i, it := range items {
		media[i] = inputMedia{
			Type:       albumType(it.Kind),
			Media:      it.Ref,
			HasSpoiler: opts.Spoiler && spoilerCapable(it.Kind),
		}
		if it.Caption != "" {
			media[i].Caption = it.Caption
			media[i].ParseMode = tgbotapi.ModeHTML
		}
	}
	params := t.baseParams(opts)
	if err := params.AddInterface("media", media); err != nil {
		return nil, fmt.Errorf("encode album: %w", err)
	}

	var msgs []tgbotapi.Message
	if err := t.call(ctx, "sendMediaGroup", params, &msgs); err != nil {
		return nil, err
	}
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = int64(m.MessageID)
	}
	return ids, nil
}

// SendText sends an HTML text message to the channel.
func (t *Transport) SendText(ctx context.Context, text string, opts publish.SendOptions) (int64, error) {
	params := t.baseParams(opts)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)

	var msg tgbotapi.Message
	if err := t.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

// DeleteMessage removes a message from the channel.
func (t *Transport) DeleteMessage(ctx context.Context, messageID int64) error {
	params := tgbotapi.Params{"chat_id": t.channel.chatRef()}
	params.AddNonZero64("message_id", messageID)
	return t.call(ctx, "deleteMessage", params, nil)
}

// NotifyOwner tells the bot owner about a new post, with a ban shortcut.
func (t *Transport) NotifyOwner(_ context.Context, n record.Notification) error {
	msg := tgbotapi.NewMessage(t.ownerID, FormatOwnerNotification(n))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Ban submitter", fmt.Sprintf("%s:%d", callbackBan, n.Submitter.ID)),
		),
	)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send owner notification: %w", err)
	}
	return nil
}

func (t *Transport) baseParams(opts publish.SendOptions) tgbotapi.Params {
	params := tgbotapi.Params{"chat_id": t.channel.chatRef()}
	if opts.ReplyTo != 0 {
		params.AddNonZero64("reply_to_message_id", opts.ReplyTo)
		params.AddBool("allow_sending_without_reply", true)
	}
	return params
}

type callResult struct {
	resp *tgbotapi.APIResponse
	err  error
}

// call runs one Bot API request and decodes its result into out. The API
// client cannot be cancelled, so an expired ctx abandons the request and
// reports publish.ErrTimeout; the message may still be delivered.
func (t *Transport) call(ctx context.Context, method string, params tgbotapi.Params, out any) error {
	done := make(chan callResult, 1)
	go func() {
		resp, err := t.api.MakeRequest(method, params)
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w: %w", method, publish.ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("%s: %w", method, r.err)
		}
		if out == nil || r.resp == nil {
			return nil
		}
		if err := json.Unmarshal(r.resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}
