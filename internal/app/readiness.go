package app

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal interface shared by the pgx pool and the queue
// producer for readiness probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessChecks returns the db, redis, and broker readiness checks.
// A nil dependency yields a nil check, which the readiness handler skips;
// optional infrastructure that is absent never fails readiness.
func BuildReadinessChecks(pool Pinger, rdb *redis.Client, broker Pinger) (
	dbCheck func(ctx context.Context) error,
	redisCheck func(ctx context.Context) error,
	brokerCheck func(ctx context.Context) error,
) {
	if pool != nil {
		dbCheck = pool.Ping
	}
	if rdb != nil {
		redisCheck = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	if broker != nil {
		brokerCheck = broker.Ping
	}
	return dbCheck, redisCheck, brokerCheck
}
