package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"

	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/queue"
)

// Enqueuer pushes discover jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, args ...interface{}) error
}

// UpdateSource is the platform long-poll endpoint.
type UpdateSource interface {
	GetUpdates(ctx context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error)
}

// Options wires a Poller.
type Options struct {
	Source UpdateSource
	Queue  Enqueuer

	// PollTimeout is the long-poll wait, default 30 seconds.
	PollTimeout time.Duration
}

// Poller turns incoming platform updates into discover jobs. All real work
// is deferred onto the queue; the poller only filters and forwards.
type Poller struct {
	source   UpdateSource
	queue    Enqueuer
	timeout  time.Duration
	instance string
	offset   int
}

func New(opts Options) *Poller {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	return &Poller{
		source:   opts.Source,
		queue:    opts.Queue,
		timeout:  opts.PollTimeout,
		instance: uuid.NewString(),
	}
}

// Run polls until ctx is cancelled. Poll failures back off briefly instead
// of spinning.
func (p *Poller) Run(ctx context.Context) error {
	logger.InfoCF("ingest", "polling for updates", map[string]any{
		"instance": p.instance,
	})

	for {
		updates, err := p.source.GetUpdates(ctx, &telego.GetUpdatesParams{
			Offset:         p.offset,
			Timeout:        int(p.timeout.Seconds()),
			AllowedUpdates: []string{"message", "channel_post"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WarnCF("ingest", "unable to fetch updates", map[string]any{
				"error": err.Error(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.Dispatch(ctx, u)
		}
	}
}

// Dispatch routes one update to the matching discover job, if any.
func (p *Poller) Dispatch(ctx context.Context, u telego.Update) {
	switch {
	case u.ChannelPost != nil:
		p.channelPost(ctx, u.ChannelPost)
	case u.Message != nil:
		p.groupMessage(ctx, u.Message)
	}
}

// channelPost enqueues a discover job for editable photo posts. Forwarded
// posts and posts already carrying a keyboard are never edited, so they are
// dropped here instead of burning a job.
func (p *Poller) channelPost(ctx context.Context, msg *telego.Message) {
	if len(msg.Photo) == 0 {
		return
	}
	if msg.ForwardOrigin != nil || msg.ReplyMarkup != nil {
		logger.DebugCF("ingest", "skipping un-editable channel post", map[string]any{
			"chat_id":    msg.Chat.ID,
			"message_id": msg.MessageID,
		})
		return
	}

	if err := p.queue.Enqueue(ctx, queue.JobChannelUpdate, msg); err != nil {
		logger.ErrorCF("ingest", "unable to enqueue channel update", map[string]any{
			"chat_id": msg.Chat.ID,
			"error":   err.Error(),
		})
	}
}

// groupMessage enqueues a discover job for photos posted in groups.
func (p *Poller) groupMessage(ctx context.Context, msg *telego.Message) {
	if len(msg.Photo) == 0 {
		return
	}
	if msg.Chat.Type != "group" && msg.Chat.Type != "supergroup" {
		return
	}

	if err := p.queue.Enqueue(ctx, queue.JobGroupPhoto, msg); err != nil {
		logger.ErrorCF("ingest", "unable to enqueue group photo", map[string]any{
			"chat_id": msg.Chat.ID,
			"error":   err.Error(),
		})
	}
}
