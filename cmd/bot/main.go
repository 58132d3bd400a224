package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"submit_bot/internal/blacklist"
	"submit_bot/internal/bot"
	"submit_bot/internal/config"
	"submit_bot/internal/content"
	"submit_bot/internal/filter"
	"submit_bot/internal/flow"
	"submit_bot/internal/ingest"
	"submit_bot/internal/intake"
	"submit_bot/internal/publish"
	"submit_bot/internal/record"
	"submit_bot/internal/scheduler"
	"submit_bot/internal/search"
	"submit_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	channel, err := bot.ParseChannel(cfg.ChannelID)
	if err != nil {
		log.Error("parse channel", "error", err)
		os.Exit(1)
	}

	api, err := bot.Connect(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bl := blacklist.New(store)
	if err := bl.Load(ctx); err != nil {
		log.Error("load blacklist", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.New(store, cfg.SessionTimeout, cfg.SweepSchedule, log.With("component", "sweeper"))
	if err != nil {
		log.Error("create scheduler", "error", err)
		os.Exit(1)
	}

	allowlist := filter.New(cfg.AllowedFileTypes)
	log.Info("document types", "allowed", allowlist.Description())

	transport := bot.NewTransport(api, channel, cfg.OwnerID, log.With("component", "transport"))

	pubCfg := publish.DefaultConfig()
	pubCfg.SendTimeout = cfg.SendTimeout
	pubCfg.ShowSubmitter = cfg.ShowSubmitter
	publisher := publish.New(transport, pubCfg, log.With("component", "publisher"))

	writer := record.NewWriter(store, search.Nop{Log: log}, transport,
		record.Options{NotifyOwner: cfg.NotifyOwner, OwnerID: cfg.OwnerID}, log.With("component", "records"))

	svc := intake.New(intake.Deps{
		Store:       store,
		Engine:      flow.New(flow.Limits{MaxTags: cfg.MaxTags, MaxTagLength: cfg.MaxTagLength}),
		Accumulator: content.NewAccumulator(store, allowlist),
		Publisher:   publisher,
		Writer:      writer,
		Replier:     bot.NewReplier(api, log),
		Sweeper:     sched,
		Blocklist:   bl,
	}, intake.Options{
		Mode:     cfg.BotMode,
		Timeout:  cfg.SessionTimeout,
		Allow:    cfg.IsUserAllowed,
		PostLink: channel.PostLink,
	}, log.With("component", "intake"))

	ingester, err := ingest.NewIngester(store, writer, cfg.ChannelID, log.With("component", "ingest"))
	if err != nil {
		log.Error("create ingester", "error", err)
		os.Exit(1)
	}

	b := bot.New(api, bot.Deps{
		Intake:    svc,
		Ingester:  ingester,
		Blacklist: bl,
		Records:   writer,
		Channel:   transport,
	}, cfg, log)

	log.Info("starting bot", "channel", cfg.ChannelID, "mode", cfg.BotMode)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
