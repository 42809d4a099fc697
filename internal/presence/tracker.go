package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/openforum/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "presence:user:"
	defaultTTL = 90 * time.Second
)

// Tracker records which users currently hold a live realtime connection.
// Keys expire on their own, so a crashed server never leaves a user
// permanently "online". All operations are best-effort: callers log
// failures and carry on.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker connects to redis and returns a presence tracker
func NewTracker(host, port, password string) (*Tracker, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Log.Info("Presence tracker connected",
		zap.String("address", fmt.Sprintf("%s:%s", host, port)),
	)

	return &Tracker{client: client, ttl: defaultTTL}, nil
}

// Online marks the user as online, refreshing the key TTL
func (t *Tracker) Online(ctx context.Context, userID string) error {
	return t.client.Set(ctx, keyPrefix+userID, time.Now().UTC().Format(time.RFC3339), t.ttl).Err()
}

// Offline removes the user's presence key
func (t *Tracker) Offline(ctx context.Context, userID string) error {
	return t.client.Del(ctx, keyPrefix+userID).Err()
}

// IsOnline reports whether the user has a live presence key
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.client.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineUsers returns the ids of all users with live presence keys
func (t *Tracker) OnlineUsers(ctx context.Context) ([]string, error) {
	var users []string
	iter := t.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		users = append(users, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Close releases the redis connection pool
func (t *Tracker) Close() error {
	return t.client.Close()
}
