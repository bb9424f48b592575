package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mshop/payments/internal/port"
)

const queueKey = "fiscal:receipts"

// Queue buffers receipts in Redis between the payment flow and the register
// worker. Settlement never waits for a register: a slow or down register only
// grows the queue.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Enqueue(ctx context.Context, receipt port.Receipt) error {
	doc, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := q.client.LPush(ctx, queueKey, doc).Err(); err != nil {
		return fmt.Errorf("client.LPush: %w", err)
	}

	return nil
}

// Dequeue blocks up to timeout waiting for the next receipt. A quiet queue
// returns false with no error.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (port.Receipt, bool, error) {
	var receipt port.Receipt

	result, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return receipt, false, nil
		}
		return receipt, false, fmt.Errorf("client.BRPop: %w", err)
	}

	if len(result) != 2 {
		return receipt, false, fmt.Errorf("unexpected BRPOP reply of %d elements", len(result))
	}

	if err := json.Unmarshal([]byte(result[1]), &receipt); err != nil {
		return receipt, false, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return receipt, true, nil
}

// Requeue puts a failed receipt at the tail so one poisoned receipt cannot
// starve the rest of the queue.
func (q *Queue) Requeue(ctx context.Context, receipt port.Receipt) error {
	doc, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := q.client.RPush(ctx, queueKey, doc).Err(); err != nil {
		return fmt.Errorf("client.RPush: %w", err)
	}

	return nil
}
