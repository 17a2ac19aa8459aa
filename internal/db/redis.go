package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis connects to the key-value store that holds refresh sessions
// Fails early if the store is not reachable
func ConnectRedis(ctx context.Context, addr string, password string, dbNum int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cant connect to redis at %s. Err: %w", addr, err)
	}

	return client, nil
}
