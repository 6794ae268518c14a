package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeSQLite = "sqlite"
)

func NewCache(cacheType, connectionString string, ttl time.Duration, size int) (VerdictCache, error) {
	switch cacheType {
	case TypeNone, "":
		return noopCache{}, nil
	case TypeMemory:
		return NewMemoryCache(size, ttl), nil
	case TypeRedis:
		redisCache, err := NewRedisCache(connectionString, ttl)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisCache.Ping(ctx); err != nil {
			_ = redisCache.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", connectionString, err)
		}
		return redisCache, nil
	case TypeSQLite:
		if connectionString == "" {
			connectionString = ":memory:"
		}
		sqliteCache, err := NewSQLiteCache(connectionString, ttl)
		if err != nil {
			return nil, err
		}
		// ensure the table exists (idempotent), important for in-memory SQLite
		slog.Info("initializing verdict cache schema", "type", cacheType)
		if err := sqliteCache.CreateTable(); err != nil {
			_ = sqliteCache.Close()
			return nil, fmt.Errorf("failed to create cache table: %w", err)
		}
		if !sqliteCache.DoesDatabaseExist() {
			_ = sqliteCache.Close()
			return nil, fmt.Errorf("sqlite cache at %s is not reachable", connectionString)
		}
		return sqliteCache, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}
}
