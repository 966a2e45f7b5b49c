package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSlotCache keeps one hash per business day: slots:{business}:{date},
// field = service id, value = JSON list of HH:MM starts.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{
		client: client,
		ttl:    ttl,
	}
}

func slotsKey(businessID int64, date time.Time) string {
	return slotsPrefix(businessID) + date.Format(models.DateLayout)
}

func slotsPrefix(businessID int64) string {
	return fmt.Sprintf("slots:%d:", businessID)
}

func (r *RedisSlotCache) GetSlots(ctx context.Context, businessID, serviceID int64, date time.Time) ([]string, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.HGet(ctx, slotsKey(businessID, date), strconv.FormatInt(serviceID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get slots from redis: %w", err)
	}

	var slots []string
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal slots: %w", err)
	}
	return slots, true, nil
}

func (r *RedisSlotCache) SetSlots(ctx context.Context, businessID, serviceID int64, date time.Time, slots []string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if slots == nil {
		slots = []string{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}

	key := slotsKey(businessID, date)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(serviceID, 10), data)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set slots in redis: %w", err)
	}
	return nil
}

// InvalidateDay drops every cached service list of the business on date.
// Shared capacity makes one booking change the slots of sibling services too.
func (r *RedisSlotCache) InvalidateDay(ctx context.Context, businessID int64, date time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, slotsKey(businessID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete slots from redis: %w", err)
	}
	return nil
}

// InvalidateBusiness deletes the day hashes of businessID found by SCAN.
func (r *RedisSlotCache) InvalidateBusiness(ctx context.Context, businessID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	iter := r.client.Scan(ctx, 0, slotsPrefix(businessID)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan slot keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete slots from redis: %w", err)
	}
	return nil
}

func (r *RedisSlotCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
