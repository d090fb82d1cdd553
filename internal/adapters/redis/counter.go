package redisad

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaCounter counts provider requests in fixed windows shared by every
// process talking to the same Redis.
type QuotaCounter struct {
	c      *redis.Client
	window time.Duration
	now    func() time.Time
}

func NewQuotaCounter(c *redis.Client, window time.Duration) *QuotaCounter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &QuotaCounter{c: c, window: window, now: time.Now}
}

func (q *QuotaCounter) Incr(ctx context.Context, source string) (int64, error) {
	bucket := q.now().UTC().Truncate(q.window).Unix()
	key := fmt.Sprintf("quota:%s:%d", source, bucket)

	var incr *redis.IntCmd
	_, err := q.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		// a little slack past the window so late readers still see the count
		p.Expire(ctx, key, q.window+time.Hour)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
