package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thealinfix/hypebot/internal/domain"
)

// RedisCandidateQueue реализует очередь кандидатов на базе Redis lists.
type RedisCandidateQueue struct {
	client *redis.Client
	key    string
}

var _ domain.CandidateQueue = (*RedisCandidateQueue)(nil)

// NewRedisCandidateQueue создаёт очередь по указанному ключу.
func NewRedisCandidateQueue(client *redis.Client, key string) *RedisCandidateQueue {
	return &RedisCandidateQueue{client: client, key: key}
}

// Enqueue публикует кандидата в очередь.
func (q *RedisCandidateQueue) Enqueue(ctx context.Context, c domain.Candidate) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push candidate: %w", err)
	}
	return nil
}

// Pop блокирующе читает кандидата из очереди.
func (q *RedisCandidateQueue) Pop(ctx context.Context) (domain.Candidate, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Candidate{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.Candidate{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.Candidate{}, err
		}
		if len(res) != 2 {
			return domain.Candidate{}, errors.New("redis queue: unexpected response")
		}
		var c domain.Candidate
		if err := json.Unmarshal([]byte(res[1]), &c); err != nil {
			return domain.Candidate{}, fmt.Errorf("decode candidate: %w", err)
		}
		return c, nil
	}
}
