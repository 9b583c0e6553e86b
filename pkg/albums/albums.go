package albums

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// sourceTTL bounds how long an album's displayed sources are remembered.
// Albums arrive within seconds of each other; five minutes is generous.
const sourceTTL = 300 * time.Second

// Memory tracks which source URLs were already displayed for a media group,
// so only the first image of an album gets annotated.
type Memory struct {
	redis *redis.Client
}

func New(client *redis.Client) *Memory {
	return &Memory{redis: client}
}

func key(mediaGroupID string) string {
	return "group-sources:" + mediaGroupID
}

// AlreadyHadSource records urls for the media group and reports whether any
// of them had been recorded before. Messages without a media group always
// report false. Every call refreshes the group's TTL.
func (m *Memory) AlreadyHadSource(ctx context.Context, mediaGroupID string, urls []string) (bool, error) {
	if mediaGroupID == "" {
		return false, nil
	}

	unique := dedupe(urls)
	if len(unique) == 0 {
		return false, nil
	}

	members := make([]interface{}, len(unique))
	for i, u := range unique {
		members[i] = u
	}

	k := key(mediaGroupID)
	added, err := m.redis.SAdd(ctx, k, members...).Result()
	if err != nil {
		return false, fmt.Errorf("record album sources: %w", err)
	}
	if err := m.redis.Expire(ctx, k, sourceTTL).Err(); err != nil {
		return false, fmt.Errorf("refresh album source ttl: %w", err)
	}

	return int64(len(unique)) > added, nil
}

func dedupe(urls []string) []string {
	out := append([]string(nil), urls...)
	sort.Strings(out)
	return slices.Compact(out)
}
