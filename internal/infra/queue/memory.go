package queue

import (
	"context"

	"github.com/thealinfix/hypebot/internal/domain"
)

// MemoryCandidateQueue — канальная очередь для запуска вотчера и бота в одном
// процессе без внешнего брокера.
type MemoryCandidateQueue struct {
	ch chan domain.Candidate
}

var _ domain.CandidateQueue = (*MemoryCandidateQueue)(nil)

// NewMemoryCandidateQueue создаёт очередь с указанной ёмкостью буфера.
func NewMemoryCandidateQueue(size int) *MemoryCandidateQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryCandidateQueue{ch: make(chan domain.Candidate, size)}
}

// Enqueue кладёт кандидата в очередь.
func (q *MemoryCandidateQueue) Enqueue(ctx context.Context, c domain.Candidate) error {
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop блокируется до появления кандидата либо отмены контекста.
func (q *MemoryCandidateQueue) Pop(ctx context.Context) (domain.Candidate, error) {
	select {
	case c := <-q.ch:
		return c, nil
	case <-ctx.Done():
		return domain.Candidate{}, ctx.Err()
	}
}
