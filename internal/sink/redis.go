package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each (run, exchange) series as a sorted set scored by the
// record's unix milliseconds.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, ttl: ttl, prefix: "samples"}, nil
}

func (r *Redis) Name() string { return "redis" }

// Key returns the sorted set holding one exchange's series of a batch.
func (r *Redis) Key(batch *Batch, exchange string) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, batch.DataType, batch.RunID, exchange)
}

func (r *Redis) Write(ctx context.Context, batch *Batch) error {
	pipe := r.client.TxPipeline()
	for exchange, records := range batch.ByExchange() {
		if len(records) == 0 {
			continue
		}
		key := r.Key(batch, exchange)
		members := make([]redis.Z, 0, len(records))
		for _, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			members = append(members, redis.Z{
				Score:  float64(rec.Timestamp.UnixMilli()),
				Member: payload,
			})
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Range returns the stored members of one exchange's series in score order.
func (r *Redis) Range(ctx context.Context, batch *Batch, exchange string) ([]string, error) {
	return r.client.ZRange(ctx, r.Key(batch, exchange), 0, -1).Result()
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
