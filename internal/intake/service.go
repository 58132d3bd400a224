// Package intake drives a contributor's session from the first command to
// publication.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"submit_bot/internal/content"
	"submit_bot/internal/flow"
	"submit_bot/internal/model"
	"submit_bot/internal/publish"
	"submit_bot/internal/record"
	"submit_bot/internal/storage"
)

// Reply is what the contributor is told after an event.
type Reply struct {
	Notice        flow.Notice
	State         model.State
	Mode          model.Mode
	MediaCount    int
	DocumentCount int
	Reason        string
	PostLink      string
}

// Replier delivers replies to the contributor's private chat.
type Replier interface {
	Reply(ctx context.Context, chatID int64, r Reply)
}

// Publisher sends a finished session to the channel.
type Publisher interface {
	Publish(ctx context.Context, sess *model.Session) (*publish.Result, error)
}

// RecordWriter persists the outcome of a publish.
type RecordWriter interface {
	Persist(ctx context.Context, sess *model.Session, res *publish.Result, submitter record.Submitter, postLink string) (*model.PublishedRecord, error)
}

// Sweeper removes idle sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Blocklist reports banned contributors.
type Blocklist interface {
	Contains(userID int64) bool
}

// Options configures a Service.
type Options struct {
	Mode     model.Mode
	Timeout  time.Duration
	Allow    func(userID int64) bool
	PostLink func(messageID int64) string
}

// Deps are the collaborators of a Service. Sweeper and Blocklist are optional.
type Deps struct {
	Store       storage.Storage
	Engine      *flow.Engine
	Accumulator *content.Accumulator
	Publisher   Publisher
	Writer      RecordWriter
	Replier     Replier
	Sweeper     Sweeper
	Blocklist   Blocklist
}

// Service applies engine decisions to stored sessions. Calls for the same
// owner must be serialized by the caller.
type Service struct {
	Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Service.
func New(deps Deps, opts Options, log *slog.Logger) *Service {
	if opts.Mode == "" {
		opts.Mode = model.ModeMixed
	}
	if opts.PostLink == nil {
		opts.PostLink = func(int64) string { return "" }
	}
	if opts.Allow == nil {
		opts.Allow = func(int64) bool { return true }
	}
	return &Service{Deps: deps, opts: opts, log: log, now: time.Now}
}

// Allowed reports whether userID may submit.
func (s *Service) Allowed(userID int64) bool {
	return s.opts.Allow(userID)
}

// Handle processes one event from the contributor.
func (s *Service) Handle(ctx context.Context, who record.Submitter, ev flow.Event) {
	log := s.log.With("owner_id", who.ID, "event", ev.Kind.String())

	if ev.Kind == flow.EventStartIntake {
		s.start(ctx, log, who)
		return
	}

	sess, err := s.Store.GetSession(ctx, who.ID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticeSessionExpired})
		return
	}
	if err != nil {
		s.fail(ctx, log, who.ID, fmt.Errorf("load session: %w", err))
		return
	}
	if s.expired(sess) {
		log.Info("session idle past timeout", "last_activity", sess.LastActivity)
		if _, err := s.Store.DeleteSession(ctx, who.ID); err != nil {
			log.Error("delete expired session", "error", err)
		}
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticeSessionExpired})
		return
	}

	d, err := s.Engine.Transition(snapshot(sess), ev)
	if errors.Is(err, flow.ErrUnknownEvent) {
		log.Warn("unknown event", "error", err)
		return
	}
	if err != nil {
		s.fail(ctx, log, who.ID, err)
		return
	}
	log.Debug("transition", "from", d.From, "next", d.Next, "action", d.Action)

	s.apply(ctx, log, who, sess, d)
}

func (s *Service) apply(ctx context.Context, log *slog.Logger, who record.Submitter, sess *model.Session, d flow.Decision) {
	switch d.Action {
	case flow.ActionNone:
		s.reply(ctx, who.ID, replyFor(sess, d.Notice))
	case flow.ActionAppendMedia:
		_, err := s.Accumulator.AppendMedia(ctx, who.ID, d.Attachment)
		s.appended(ctx, log, who.ID, d, err)
	case flow.ActionAppendDocument:
		_, err := s.Accumulator.AppendDocument(ctx, who.ID, d.Attachment)
		s.appended(ctx, log, who.ID, d, err)
	case flow.ActionCancel:
		if _, err := s.Store.DeleteSession(ctx, who.ID); err != nil {
			log.Error("delete session", "error", err)
		}
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticeCancelled})
	case flow.ActionPublish:
		sess.Spoiler = d.Spoiler
		sess.State = d.Next
		s.publish(ctx, log, who, sess)
	default:
		updated, err := s.Store.UpdateSession(ctx, who.ID, func(cur *model.Session) error {
			applyDecision(cur, d)
			cur.LastActivity = s.now()
			return nil
		})
		if errors.Is(err, storage.ErrSessionNotFound) {
			s.reply(ctx, who.ID, Reply{Notice: flow.NoticeSessionExpired})
			return
		}
		if err != nil {
			s.fail(ctx, log, who.ID, fmt.Errorf("update session: %w", err))
			return
		}
		s.reply(ctx, who.ID, replyFor(updated, d.Notice))
	}
}

// applyDecision copies the values carried by d onto the session.
func applyDecision(sess *model.Session, d flow.Decision) {
	sess.State = d.Next
	switch d.Action {
	case flow.ActionSetMode:
		sess.Mode = d.Mode
	case flow.ActionSetTags:
		sess.Tags = d.Tags
	case flow.ActionSetLink:
		sess.Link = d.Value
	case flow.ActionSetTitle:
		sess.Title = d.Value
	case flow.ActionSetNote:
		sess.Note = d.Value
	case flow.ActionSkipOptional:
		switch d.From {
		case model.StateLink:
			sess.Link, sess.Title, sess.Note = "", "", ""
		case model.StateTitle:
			sess.Title, sess.Note = "", ""
		case model.StateNote:
			sess.Note = ""
		}
	}
}

func (s *Service) start(ctx context.Context, log *slog.Logger, who record.Submitter) {
	if !s.Allowed(who.ID) {
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticeNotAllowed})
		return
	}
	if s.Blocklist != nil && s.Blocklist.Contains(who.ID) {
		log.Info("blacklisted user refused")
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticeBlacklisted})
		return
	}
	if s.Sweeper != nil {
		if _, err := s.Sweeper.Sweep(ctx); err != nil {
			log.Warn("sweep on start", "error", err)
		}
	}

	d, err := s.Engine.Transition(flow.Snapshot{Mode: s.opts.Mode}, flow.Event{Kind: flow.EventStartIntake})
	if err != nil {
		s.fail(ctx, log, who.ID, err)
		return
	}

	now := s.now()
	sess := &model.Session{
		OwnerID:      who.ID,
		DisplayName:  who.Username,
		State:        d.Next,
		Mode:         s.opts.Mode,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		s.fail(ctx, log, who.ID, fmt.Errorf("create session: %w", err))
		return
	}
	log.Info("intake started", "mode", sess.Mode, "state", sess.State)
	s.reply(ctx, who.ID, replyFor(sess, d.Notice))
}

func (s *Service) appended(ctx context.Context, log *slog.Logger, ownerID int64, d flow.Decision, err error) {
	var typeErr *content.TypeError
	switch {
	case err == nil:
	case errors.Is(err, content.ErrAtCapacity):
		s.reply(ctx, ownerID, Reply{Notice: flow.NoticeAtCapacity, State: d.From, Mode: d.Mode})
		return
	case errors.As(err, &typeErr):
		s.reply(ctx, ownerID, Reply{Notice: flow.NoticeInvalidType, State: d.From, Mode: d.Mode, Reason: typeErr.Reason})
		return
	case errors.Is(err, storage.ErrSessionNotFound):
		s.reply(ctx, ownerID, Reply{Notice: flow.NoticeSessionExpired})
		return
	default:
		s.fail(ctx, log, ownerID, err)
		return
	}

	sess, err := s.Store.GetSession(ctx, ownerID)
	if err != nil {
		s.fail(ctx, log, ownerID, fmt.Errorf("reload session: %w", err))
		return
	}
	s.reply(ctx, ownerID, replyFor(sess, d.Notice))
}

// publish sends the session and records the outcome. Once started it runs to
// completion even if ctx is cancelled, so a delivered post is never left
// without its record.
func (s *Service) publish(ctx context.Context, log *slog.Logger, who record.Submitter, sess *model.Session) {
	ctx = context.WithoutCancel(ctx)
	s.reply(ctx, who.ID, Reply{Notice: flow.NoticePublishing})

	res, err := s.Publisher.Publish(ctx, sess)
	if err != nil {
		log.Error("publish", "error", err)
		if _, derr := s.Store.DeleteSession(ctx, who.ID); derr != nil {
			log.Error("delete session", "error", derr)
		}
		s.reply(ctx, who.ID, Reply{Notice: flow.NoticePublishFailed})
		return
	}

	link := s.opts.PostLink(res.PrimaryID)
	log.Info("published", "message_id", res.PrimaryID, "batches", res.Batches, "failed", res.Failed)
	s.reply(ctx, who.ID, Reply{Notice: flow.NoticePublished, PostLink: link})

	if _, err := s.Writer.Persist(ctx, sess, res, who, link); err != nil {
		log.Error("persist published record", "error", err)
	}
}

// fail ends the conversation after an internal error.
func (s *Service) fail(ctx context.Context, log *slog.Logger, ownerID int64, err error) {
	log.Error("intake failed", "error", err)
	if _, derr := s.Store.DeleteSession(ctx, ownerID); derr != nil {
		log.Error("delete session", "error", derr)
	}
	s.reply(ctx, ownerID, Reply{Notice: flow.NoticeInternalError})
}

func (s *Service) expired(sess *model.Session) bool {
	return s.opts.Timeout > 0 && s.now().Sub(sess.LastActivity) > s.opts.Timeout
}

func (s *Service) reply(ctx context.Context, chatID int64, r Reply) {
	s.Replier.Reply(ctx, chatID, r)
}

func snapshot(sess *model.Session) flow.Snapshot {
	return flow.Snapshot{
		State:         sess.State,
		Mode:          sess.Mode,
		MediaCount:    len(sess.MediaItems),
		DocumentCount: len(sess.DocumentItems),
	}
}

func replyFor(sess *model.Session, n flow.Notice) Reply {
	return Reply{
		Notice:        n,
		State:         sess.State,
		Mode:          sess.Mode,
		MediaCount:    len(sess.MediaItems),
		DocumentCount: len(sess.DocumentItems),
	}
}
