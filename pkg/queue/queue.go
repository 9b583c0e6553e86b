package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	faktory "github.com/contribsys/faktory/client"

	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/tracing"
)

// Queue is the background queue name. It predates this service and is shared
// with external producers, so it is not configurable.
const Queue = "foxbot_background"

// Job types understood by the pipeline.
const (
	JobChannelUpdate = "channel_update"
	JobChannelEdit   = "channel_edit"
	JobGroupPhoto    = "group_photo"
	JobGroupSource   = "group_source"
)

// jobRetries is the queue-native retry budget for pipeline jobs.
const jobRetries = 2

// ChannelEdit is the apply payload for the channel path.
type ChannelEdit struct {
	ChatID       string      `json:"chat_id"`
	MessageID    int         `json:"message_id"`
	MediaGroupID *string     `json:"media_group_id,omitempty"`
	Firsts       [][2]string `json:"firsts"`
}

// GroupSource is the apply payload for the group path.
type GroupSource struct {
	ChatID           string `json:"chat_id"`
	ReplyToMessageID int    `json:"reply_to_message_id"`
	Text             string `json:"text"`
}

// Producer enqueues pipeline jobs. The connection pool handle is shared, so
// pushes are serialized; they are brief.
type Producer struct {
	mu   sync.Mutex
	pool *faktory.Pool
}

// NewProducer connects to the queue server. A non-empty url overrides the
// FAKTORY_URL environment the client library reads.
func NewProducer(url string) (*Producer, error) {
	if url != "" {
		if err := os.Setenv("FAKTORY_URL", url); err != nil {
			return nil, fmt.Errorf("set queue url: %w", err)
		}
	}

	pool, err := faktory.NewPool(2)
	if err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}
	return &Producer{pool: pool}, nil
}

// Enqueue pushes a job that may run immediately.
func (p *Producer) Enqueue(ctx context.Context, jobType string, args ...interface{}) error {
	return p.enqueue(ctx, jobType, time.Time{}, args)
}

// EnqueueAt pushes a job that must not run before at.
func (p *Producer) EnqueueAt(ctx context.Context, at time.Time, jobType string, args ...interface{}) error {
	return p.enqueue(ctx, jobType, at, args)
}

func (p *Producer) enqueue(ctx context.Context, jobType string, at time.Time, args []interface{}) error {
	job := faktory.NewJob(jobType, args...)
	job.Queue = Queue
	retry := jobRetries
	job.Retry = &retry
	job.Custom = tracing.InjectMap(ctx)
	if !at.IsZero() {
		job.At = at.UTC().Format(time.RFC3339Nano)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.pool.With(func(conn *faktory.Client) error {
		return conn.Push(job)
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}

	logger.DebugCF("queue", "job enqueued", map[string]any{
		"type": jobType,
		"jid":  job.Jid,
		"at":   job.At,
	})
	return nil
}
