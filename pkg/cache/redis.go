package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
}

var client *redis.Client

// Init connects the package-level Redis client and verifies the connection.
func Init(cfg Config) error {
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}

	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	client = c
	return nil
}

// Client returns the Redis client, or nil before Init succeeds.
func Client() *redis.Client {
	return client
}

// Close closes the Redis connection.
func Close() error {
	if client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	client = nil
	return nil
}

// IsInitialized reports whether Init has run successfully.
func IsInitialized() bool {
	return client != nil
}
