// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessChecks returns three readiness checks: db, redis, and kafka.
// kafkaPing is supplied by the caller (the bus producer's own Ping) so this
// package does not need to depend on the kafka adapter directly.
func BuildReadinessChecks(pool Pinger, redisClient *redis.Client, kafkaPing func(ctx context.Context) error) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if redisClient == nil {
			return fmt.Errorf("redis not configured")
		}
		return redisClient.Ping(ctx).Err()
	}
	kafkaCheck := func(ctx context.Context) error {
		if kafkaPing == nil {
			return fmt.Errorf("kafka not configured")
		}
		return kafkaPing(ctx)
	}
	return dbCheck, redisCheck, kafkaCheck
}
