package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"submit_bot/internal/blacklist"
	"submit_bot/internal/config"
	"submit_bot/internal/flow"
	"submit_bot/internal/ingest"
	"submit_bot/internal/intake"
	"submit_bot/internal/mailbox"
	"submit_bot/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Connect authenticates against the Bot API with token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// RecordDeleter soft-deletes published records.
type RecordDeleter interface {
	Delete(ctx context.Context, messageID int64) (*model.PublishedRecord, error)
}

// Deps are the services the bot routes updates to.
type Deps struct {
	Intake    *intake.Service
	Ingester  *ingest.Ingester
	Blacklist *blacklist.Cache
	Records   RecordDeleter
	Channel   *Transport
}

// Bot routes Telegram updates to the intake flow, the channel ingester and
// the owner commands.
type Bot struct {
	api     telegramAPI
	deps    Deps
	cfg     *config.Config
	mailbox *mailbox.Dispatcher
	log     *slog.Logger

	ingestWG sync.WaitGroup
}

// New creates a Bot on top of an authenticated API client.
func New(api telegramAPI, deps Deps, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		deps:    deps,
		cfg:     cfg,
		mailbox: mailbox.New(log),
		log:     log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled
// and all queued work has finished.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "channel_post", "edited_channel_post"}

	updates := b.api.GetUpdatesChan(u)

	// Accepted updates are finished after shutdown starts.
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.mailbox.Wait()
			b.ingestWG.Wait()
			return
		case update := <-updates:
			b.dispatch(work, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.ChannelPost != nil:
		b.ingestAsync(ctx, update.ChannelPost, false)
	case update.EditedChannelPost != nil:
		b.ingestAsync(ctx, update.EditedChannelPost, true)
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		b.mailbox.Submit(cb.From.ID, func() { b.handleCallback(ctx, cb) })
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || !msg.Chat.IsPrivate() {
			return
		}
		b.mailbox.Submit(msg.From.ID, func() { b.handleMessage(ctx, msg) })
	}
}

func (b *Bot) ingestAsync(ctx context.Context, msg *tgbotapi.Message, edited bool) {
	if b.deps.Ingester == nil {
		return
	}
	post := PostFromMessage(msg, edited)
	b.ingestWG.Add(1)
	go func() {
		defer b.ingestWG.Done()
		outcome, err := b.deps.Ingester.Ingest(ctx, post)
		if err != nil {
			b.log.Error("ingest channel post", "message_id", post.MessageID, "error", err)
			return
		}
		b.log.Debug("channel post", "message_id", post.MessageID, "outcome", outcome.String())
	}()
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	ev, ok := EventFromMessage(msg)
	if !ok {
		return
	}
	b.deps.Intake.Handle(ctx, submitterOf(msg.From), ev)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	if kind, ok := commandEvents[cmd]; ok {
		b.deps.Intake.Handle(ctx, submitterOf(msg.From), flowEvent(kind))
		return
	}

	switch cmd {
	case "start":
		b.handleStart(chatID)
		b.deps.Intake.Handle(ctx, submitterOf(msg.From), flowEvent(flow.EventStartIntake))
	case "help":
		b.handleHelp(chatID, b.cfg.IsOwner(msg.From.ID))
	case cmdBlacklistAdd, cmdBlacklistRemove, cmdBlacklistList, cmdDelPost:
		if !b.cfg.IsOwner(msg.From.ID) {
			b.reply(chatID, "This command is only available to the bot owner.")
			return
		}
		b.handleOwnerCommand(ctx, chatID, cmd, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
