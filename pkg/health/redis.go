package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the message broker
type RedisChecker struct {
	Name   string
	client redis.Cmdable
}

// NewRedisChecker creates a checker that issues PING on client
func NewRedisChecker(name string, client redis.Cmdable) *RedisChecker {
	return &RedisChecker{Name: name, client: client}
}

func (r *RedisChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return failed(r.Name, start, "ping failed", err)
	}
	return ok("PONG", start)
}

func (r *RedisChecker) Component() string {
	return r.Name
}

// FuncChecker adapts a plain function to the Checker interface
type FuncChecker struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (f *FuncChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := f.Fn(ctx); err != nil {
		return failed(f.Name, start, "check failed", err)
	}
	return ok("ok", start)
}

func (f *FuncChecker) Component() string {
	return f.Name
}
