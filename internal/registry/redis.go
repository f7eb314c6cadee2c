package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatforge/chatforge/pkg/schema"
)

const redisKeyPrefix = "chatforge:paused:"

// RedisRegistry stores paused executions in redis as JSON values. It is
// the opt-in backend for deployments running more than one engine
// instance: any instance can resume a wait recorded by another. Entries
// are written without a TTL. A contact may answer a button prompt days
// later, and expiring the wait would silently drop their reply; stale
// entries are overwritten by the next pause on the same conversation.
type RedisRegistry struct {
	client redis.UniversalClient
}

// NewRedisRegistry creates a redis-backed registry on an existing client.
func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Pause(ctx context.Context, entry *PausedExecution) error {
	if entry == nil || entry.ConversationID == "" {
		return schema.NewError(schema.ErrCodeRegistry, "paused execution requires a conversation id")
	}
	if entry.PausedAt.IsZero() {
		entry.PausedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeRegistry,
			"marshal paused execution for %s: %s", entry.ConversationID, err.Error()).WithCause(err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+entry.ConversationID, raw, 0).Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeRegistry,
			"store paused execution for %s: %s", entry.ConversationID, err.Error()).WithCause(err)
	}
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, conversationID string) (*PausedExecution, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistry,
			"lookup paused execution for %s: %s", conversationID, err.Error()).WithCause(err)
	}

	var entry PausedExecution
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistry,
			"decode paused execution for %s: %s", conversationID, err.Error()).WithCause(err)
	}
	return &entry, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+conversationID).Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeRegistry,
			"remove paused execution for %s: %s", conversationID, err.Error()).WithCause(err)
	}
	return nil
}

var _ Registry = (*RedisRegistry)(nil)
