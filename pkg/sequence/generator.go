package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator issues short human-readable codes. Snowflake IDs stay the row
// identity; these codes are what staff read out loud and print on receipts.
type Generator interface {
	NextTenantCode(ctx context.Context) (string, error)
	NextCustomerCode(ctx context.Context, tenantID string) (string, error)
	NextRedemptionCode(ctx context.Context, tenantID string) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextTenantCode(ctx context.Context) (string, error) {
	key := "seq:tenant"
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("R%03d", seq), nil
}

func (g *RedisGenerator) NextCustomerCode(ctx context.Context, tenantID string) (string, error) {
	key := fmt.Sprintf("seq:CUS:%s", tenantID)
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CUS-%06d", seq), nil
}

func (g *RedisGenerator) NextRedemptionCode(ctx context.Context, tenantID string) (string, error) {
	return g.nextDailyCode(ctx, "RDM", tenantID)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix, tenantID string) (string, error) {
	today := time.Now().UTC().Format("060102")
	key := fmt.Sprintf("seq:%s:%s:%s", prefix, tenantID, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		expire := time.Until(time.Now().Truncate(24 * time.Hour).Add(24*time.Hour - time.Second))
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, today, seq), nil
}
