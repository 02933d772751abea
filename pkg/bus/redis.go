package bus

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL is used when no broker URL is configured
const DefaultRedisURL = "redis://localhost:6379/0"

// NewRedisClient creates a client for the broker at url
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		url = DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
