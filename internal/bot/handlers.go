package bot

import (
	"context"
	"errors"
	"fmt"

	"submit_bot/internal/storage"
)

const (
	cmdBlacklistAdd    = "blacklist_add"
	cmdBlacklistRemove = "blacklist_remove"
	cmdBlacklistList   = "blacklist_list"
	cmdDelPost         = "delpost"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome! This bot collects submissions for the channel.

Quick start:
1. Pick media or document below (/submit starts over)
2. Send your files, then /done_doc or /done_media
3. Answer the questions for tags, link, title and note

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64, owner bool) {
	text := `Submissions:
/submit — start a new submission
/done_doc — finish sending documents
/done_media — finish sending media
/skip_media — continue without media (document submissions)
/skip_optional — skip the remaining link, title and note
/cancel — discard the current submission`
	if owner {
		text += `

Moderation:
/blacklist_add <user_id> [reason] — bar a user from submitting
/blacklist_remove <user_id> — lift a ban
/blacklist_list — show banned users
/delpost <message_id> — delete a published post`
	}
	b.reply(chatID, text)
}

func (b *Bot) handleOwnerCommand(ctx context.Context, chatID int64, cmd, args string) {
	switch cmd {
	case cmdBlacklistAdd:
		b.handleBlacklistAdd(ctx, chatID, args)
	case cmdBlacklistRemove:
		b.handleBlacklistRemove(ctx, chatID, args)
	case cmdBlacklistList:
		b.reply(chatID, FormatBlacklist(b.deps.Blacklist.List()))
	case cmdDelPost:
		b.handleDelPost(ctx, chatID, args)
	}
}

func (b *Bot) handleBlacklistAdd(ctx context.Context, chatID int64, args string) {
	id, reason, err := ParseBlacklistArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.ban(ctx, chatID, id, reason)
}

func (b *Bot) ban(ctx context.Context, chatID, userID int64, reason string) {
	if b.cfg.IsOwner(userID) {
		b.reply(chatID, "The bot owner cannot be blacklisted.")
		return
	}
	if err := b.deps.Blacklist.Add(ctx, userID, reason); err != nil {
		b.log.Error("blacklist add", "user_id", userID, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.log.Info("user blacklisted", "user_id", userID, "reason", reason)
	b.reply(chatID, fmt.Sprintf("User %d blacklisted.", userID))
}

func (b *Bot) handleBlacklistRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <user_id>", cmdBlacklistRemove))
		return
	}
	removed, err := b.deps.Blacklist.Remove(ctx, id)
	if err != nil {
		b.log.Error("blacklist remove", "user_id", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("User %d is not blacklisted.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("User %d removed from the blacklist.", id))
}

func (b *Bot) handleDelPost(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <message_id>", cmdDelPost))
		return
	}

	rec, err := b.deps.Records.Delete(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		b.reply(chatID, fmt.Sprintf("Post %d not found.", id))
		return
	}
	if err != nil {
		b.log.Error("delete post record", "message_id", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	ids := append([]int64{rec.MessageID}, rec.RelatedMessageIDs...)
	var removed int
	for _, mid := range ids {
		if err := b.deps.Channel.DeleteMessage(ctx, mid); err != nil {
			b.log.Warn("delete channel message", "message_id", mid, "error", err)
			continue
		}
		removed++
	}
	b.log.Info("post deleted", "message_id", id, "removed", removed)
	b.reply(chatID, fmt.Sprintf("Post %d deleted (%d of %d channel messages removed).", id, removed, len(ids)))
}
