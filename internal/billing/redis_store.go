package billing

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBalances keeps caller balances in Redis so several API processes
// can meter against the same credit pool.
//
// The conditional decrement runs as a Lua script, which Redis executes
// atomically; the balance can therefore never be driven negative by
// concurrent ticks.
type RedisBalances struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewRedisBalances(rdb *redis.Client) *RedisBalances {
	return &RedisBalances{rdb: rdb, keyPrefix: "balance:"}
}

var debitScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amt = tonumber(ARGV[1])
if bal < amt then
  return {0, bal}
end
return {1, redis.call('DECRBY', KEYS[1], amt)}
`)

func (s *RedisBalances) key(userID string) string {
	return s.keyPrefix + userID
}

func (s *RedisBalances) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	v, err := s.rdb.Get(ctx, s.key(userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("balance read: %w", err)
	}
	return v, nil
}

func (s *RedisBalances) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	v, err := s.rdb.IncrBy(ctx, s.key(userID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("balance credit: %w", err)
	}
	return v, nil
}

func (s *RedisBalances) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	res, err := debitScript.Run(ctx, s.rdb, []string{s.key(userID)}, amount).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("balance debit: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("balance debit: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		return res[1], ErrInsufficientFunds
	}
	return res[1], nil
}
