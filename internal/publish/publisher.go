// Package publish delivers completed submissions to the output channel.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"submit_bot/internal/model"
)

// Sentinel errors.
var (
	// ErrTimeout marks a send whose outcome is unknown. Transports wrap it.
	ErrTimeout = errors.New("send timed out")
	// ErrNothingDelivered is returned when no attachment batch succeeded.
	ErrNothingDelivered = errors.New("no attachment delivered")
	// ErrEmptySubmission is returned for a session without attachments.
	ErrEmptySubmission = errors.New("submission has no attachments")
)

// BatchSize is the transport's ceiling on items per grouped send.
const BatchSize = 10

// Item is one attachment in a send.
type Item struct {
	Kind    model.AttachmentKind
	Ref     string
	Caption string
}

// SendOptions are per-send parameters.
type SendOptions struct {
	ReplyTo int64
	Spoiler bool
}

// Transport sends messages to the output channel.
type Transport interface {
	SendSingle(ctx context.Context, item Item, opts SendOptions) (int64, error)
	SendBatch(ctx context.Context, items []Item, opts SendOptions) ([]int64, error)
	SendText(ctx context.Context, text string, opts SendOptions) (int64, error)
	DeleteMessage(ctx context.Context, messageID int64) error
}

// Config controls send timing.
type Config struct {
	SendTimeout   time.Duration
	TimeoutPause  time.Duration
	FailurePause  time.Duration
	BatchGap      time.Duration
	ShowSubmitter bool
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{
		SendTimeout:   60 * time.Second,
		TimeoutPause:  3 * time.Second,
		FailurePause:  5 * time.Second,
		BatchGap:      2 * time.Second,
		ShowSubmitter: true,
	}
}

// Result describes a finished publish.
type Result struct {
	PrimaryID  int64
	RelatedIDs []int64
	LeadID     int64
	Caption    string
	Batches    int
	Failed     int
}

// Publisher turns a completed session into channel posts.
type Publisher struct {
	transport Transport
	cfg       Config
	log       *slog.Logger
	sleep     func(time.Duration)
}

// New creates a Publisher.
func New(transport Transport, cfg Config, log *slog.Logger) *Publisher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 60 * time.Second
	}
	return &Publisher{
		transport: transport,
		cfg:       cfg,
		log:       log,
		sleep:     time.Sleep,
	}
}

type batch struct {
	label string
	items []Item
	media bool
}

// Publish sends the session's attachments. Media goes first and anchors the
// post; documents reply to it. Every send is attempted once. Once started,
// sending ignores cancellation of ctx.
func (p *Publisher) Publish(ctx context.Context, sess *model.Session) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	log := p.log.With("owner_id", sess.OwnerID)

	total := len(sess.MediaItems) + len(sess.DocumentItems)
	if total == 0 {
		return nil, ErrEmptySubmission
	}

	in := CaptionFor(sess, p.cfg.ShowSubmitter)
	caption := RenderCaption(in)
	res := &Result{Caption: caption}

	if Length(caption) > CaptionLimit {
		id, err := p.attempt(ctx, log, "lead", func(ctx context.Context) (int64, error) {
			return p.transport.SendText(ctx, RenderText(in, TextLimit), SendOptions{})
		})
		if err == nil {
			res.LeadID = id
			caption = ""
		} else {
			caption = RenderText(in, CaptionLimit)
		}
	}

	if total == 1 {
		if err := p.publishSingle(ctx, log, sess, caption, res); err != nil {
			p.dropLead(ctx, log, res)
			return nil, err
		}
		return res, nil
	}

	for i, b := range p.batches(sess, caption) {
		if i > 0 {
			p.sleep(p.cfg.BatchGap)
		}
		opts := SendOptions{ReplyTo: res.LeadID, Spoiler: b.media && sess.Spoiler}
		if res.PrimaryID != 0 && (res.LeadID == 0 || !b.media) {
			opts.ReplyTo = res.PrimaryID
		}

		res.Batches++
		id, err := p.attempt(ctx, log.With("batch", b.label, "items", len(b.items)), b.label, func(ctx context.Context) (int64, error) {
			ids, err := p.transport.SendBatch(ctx, b.items, opts)
			if err != nil {
				return 0, err
			}
			if len(ids) == 0 {
				return 0, fmt.Errorf("empty result for %d items", len(b.items))
			}
			return ids[0], nil
		})
		if err != nil {
			res.Failed++
			continue
		}
		if res.PrimaryID == 0 {
			res.PrimaryID = id
		} else {
			res.RelatedIDs = append(res.RelatedIDs, id)
		}
	}

	if res.PrimaryID == 0 {
		p.dropLead(ctx, log, res)
		return nil, fmt.Errorf("%w: %d of %d batches failed", ErrNothingDelivered, res.Failed, res.Batches)
	}
	if res.LeadID != 0 {
		res.RelatedIDs = append([]int64{res.LeadID}, res.RelatedIDs...)
	}
	log.Info("submission published", "message_id", res.PrimaryID,
		"batches", res.Batches, "failed", res.Failed)
	return res, nil
}

func (p *Publisher) publishSingle(ctx context.Context, log *slog.Logger, sess *model.Session, caption string, res *Result) error {
	item := Item{Caption: caption}
	opts := SendOptions{ReplyTo: res.LeadID}
	if len(sess.MediaItems) == 1 {
		m := sess.MediaItems[0]
		item.Kind, item.Ref = model.AttachmentKind(m.Kind), m.Ref
		opts.Spoiler = sess.Spoiler
	} else {
		d := sess.DocumentItems[0]
		item.Kind, item.Ref = model.AttachDocument, d.Ref
	}

	res.Batches = 1
	id, err := p.attempt(ctx, log, "single", func(ctx context.Context) (int64, error) {
		return p.transport.SendSingle(ctx, item, opts)
	})
	if err != nil {
		res.Failed = 1
		return fmt.Errorf("%w: %w", ErrNothingDelivered, err)
	}
	res.PrimaryID = id
	if res.LeadID != 0 {
		res.RelatedIDs = []int64{res.LeadID}
	}
	log.Info("submission published", "message_id", id)
	return nil
}

// batches splits media and documents into transport-sized groups. The
// caption goes on the first item of the first group; documents only carry
// it when there is no media.
func (p *Publisher) batches(sess *model.Session, caption string) []batch {
	var out []batch

	media := make([]Item, 0, len(sess.MediaItems))
	for _, m := range sess.MediaItems {
		media = append(media, Item{Kind: model.AttachmentKind(m.Kind), Ref: m.Ref})
	}
	docs := make([]Item, 0, len(sess.DocumentItems))
	for _, d := range sess.DocumentItems {
		docs = append(docs, Item{Kind: model.AttachDocument, Ref: d.Ref})
	}

	for i, group := range chunk(media, BatchSize) {
		out = append(out, batch{label: fmt.Sprintf("media-%d", i+1), items: group, media: true})
	}
	for i, group := range chunk(docs, BatchSize) {
		out = append(out, batch{label: fmt.Sprintf("documents-%d", i+1), items: group})
	}
	if caption != "" && len(out) > 0 {
		out[0].items[0].Caption = caption
	}
	return out
}

func chunk(items []Item, size int) [][]Item {
	var out [][]Item
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// attempt runs one send under the send timeout. A timeout is logged as a
// warning and a definite failure as an error; each is followed by a pause.
// Neither is retried.
func (p *Publisher) attempt(ctx context.Context, log *slog.Logger, label string, send func(context.Context) (int64, error)) (int64, error) {
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()

	id, err := send(sendCtx)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		log.Warn("send timed out, may have been delivered", "send", label, "error", err)
		p.sleep(p.cfg.TimeoutPause)
	default:
		log.Error("send failed", "send", label, "error", err)
		p.sleep(p.cfg.FailurePause)
	}
	return 0, err
}

func (p *Publisher) dropLead(ctx context.Context, log *slog.Logger, res *Result) {
	if res.LeadID == 0 {
		return
	}
	if err := p.transport.DeleteMessage(ctx, res.LeadID); err != nil {
		log.Warn("delete orphaned lead message", "message_id", res.LeadID, "error", err)
	}
	res.LeadID = 0
}
