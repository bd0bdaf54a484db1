package auth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-registration/internal/logger"
)

// InitializeRedis connects the shared Redis client used for token
// caching and the ledger's submission locks, verifying the connection
// before handing it out.
func InitializeRedis(redisAddr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		if log != nil {
			log.Error("AUTH", "Failed to connect to Redis at "+redisAddr+": "+err.Error())
		}
		return nil, err
	}

	if log != nil {
		log.Info("AUTH", "Connected to Redis at "+redisAddr)
	}
	return redisClient, nil
}
