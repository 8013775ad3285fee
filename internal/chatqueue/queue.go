// Package chatqueue implements the per-bot outbound chat-message queue
// drained by the Bot Agent Runtime's dequeueMessage RPC (§4.7 "chat queue
// drain", §4.8 "dequeueMessage(bot-id) -> {messageText}? | null; pop next
// chat message; at-most-once"). Message composition itself is out of
// scope (§1 Non-goals); this only stores and pops operator-supplied text.
package chatqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

func key(botID int64) string {
	return "bot:" + strconv.FormatInt(botID, 10) + ":chat"
}

type Queue struct {
	redis redis.Cmdable
}

func NewQueue(rdb redis.Cmdable) *Queue {
	return &Queue{redis: rdb}
}

// Enqueue appends a chat message to bot botID's outbound queue.
func (q *Queue) Enqueue(ctx context.Context, botID int64, text string) error {
	if err := q.redis.RPush(ctx, key(botID), text).Err(); err != nil {
		return fmt.Errorf("enqueue chat message: %w", err)
	}
	return nil
}

// Dequeue pops the next message for botID, at-most-once. A nil return with
// no error means the queue was empty.
func (q *Queue) Dequeue(ctx context.Context, botID int64) (*string, error) {
	text, err := q.redis.LPop(ctx, key(botID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue chat message: %w", err)
	}
	return &text, nil
}
