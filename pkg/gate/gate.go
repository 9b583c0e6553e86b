package gate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vulpo-bot/vulpo/pkg/logger"
)

// Gate is the per-chat cooperative delay registry. It only reduces wasted
// requests; the platform's own rate-limit response remains the backstop, so
// every failure path here is fail-open.
type Gate struct {
	redis *redis.Client
}

func New(client *redis.Client) *Gate {
	return &Gate{redis: client}
}

func key(chatID string) string {
	return "retry-at:" + chatID
}

// NeedsMoreTime records that chatID must not be contacted again before at.
// Write failures are logged and swallowed.
func (g *Gate) NeedsMoreTime(ctx context.Context, chatID string, at time.Time) {
	ttl := time.Until(at).Truncate(time.Second)
	if ttl <= 0 {
		logger.WarnCF("gate", "retry time is not in the future", map[string]any{
			"chat_id": chatID,
			"at":      at.Unix(),
		})
	}
	// The store rejects non-positive expirations; a one second floor keeps
	// the write valid while CheckMoreTime still treats the value as absent.
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := g.redis.SetEx(ctx, key(chatID), at.Unix(), ttl).Err(); err != nil {
		logger.ErrorCF("gate", "unable to record retry time", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

// CheckMoreTime returns the recorded earliest send time for chatID, or nil
// when no future time is recorded. Read failures return nil.
func (g *Gate) CheckMoreTime(ctx context.Context, chatID string) *time.Time {
	val, err := g.redis.Get(ctx, key(chatID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnCF("gate", "unable to read retry time", map[string]any{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
		return nil
	}

	if at := time.Unix(val, 0); at.After(time.Now()) {
		return &at
	}
	return nil
}
