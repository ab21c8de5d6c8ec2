// Package cache — Redis-кэш (хранилище OTP-кодов и короткоживущих данных).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dolya-app/dolya/internal/config"
)

// Cache — обёртка над Redis с JSON-сериализацией значений.
//
// Контракт ошибок мягкий: недоступность Redis деградирует функциональность
// (Get возвращает промах, Set — false), но не валит обслуживание запроса.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New создаёт кэш и проверяет соединение ping-ом.
func New(ctx context.Context, cfg config.Redis, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Get читает значение по ключу в dest. Возвращает false при промахе
// или ошибке.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Error("cache value decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set сохраняет значение с TTL. Возвращает false при ошибке.
func (c *Cache) Set(ctx context.Context, key string, value any, expire time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache value encode failed", "key", key, "error", err)
		return false
	}
	if err := c.client.Set(ctx, key, raw, expire).Err(); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
		return false
	}
	return true
}

// Delete удаляет ключ. Возвращает true, если ключ существовал.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		c.logger.Error("cache delete failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	return c.client.Close()
}
