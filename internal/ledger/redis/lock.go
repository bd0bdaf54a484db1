package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Redis holds a short-TTL lock per (event, user) submission so a
// double-clicked register button does not produce two racing attempts.
// The lock is advisory: the conditional counter update in the DB layer
// is the authoritative guard.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger

	token string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
		token:  uuid.NewString(),
	}
}

// getSubmitLockDuration returns the submission lock TTL from the
// environment or the default value.
func (r *Redis) getSubmitLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("SUBMIT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid SUBMIT_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultDuration
	}
	return time.Duration(ttlSec) * time.Second
}

func submitKey(eventID, userID int64) string {
	return fmt.Sprintf("reg_submit:%d:%d", eventID, userID)
}

// LockSubmission takes the per-(event, user) lock. Returns false when
// another submission for the same pair is already in flight.
func (r *Redis) LockSubmission(eventID, userID int64) (bool, error) {
	key := submitKey(eventID, userID)
	ok, err := r.Client.SetNX(context.Background(), key, r.token, r.getSubmitLockDuration()).Result()
	return ok, err
}

// UnlockSubmission releases the lock if this instance still owns it.
func (r *Redis) UnlockSubmission(eventID, userID int64) error {
	ctx := context.Background()
	key := submitKey(eventID, userID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == r.token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
