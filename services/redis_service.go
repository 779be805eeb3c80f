package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abin2112/Greencycle-sub000/config"

	"github.com/go-redis/redis/v8"
)

// InterfaceRedisService defines the cache service interface
type InterfaceRedisService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	CacheImpactSummary(accountID uint, summary interface{}) error
	GetCachedImpactSummary(accountID uint, dest interface{}) error
	InvalidateImpactSummary(accountID uint) error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Config *config.Config
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: "", // No password set
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	return &RedisService{
		Client: client,
		Config: cfg,
		Ctx:    ctx,
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// impactSummaryKey 环保成果汇总的缓存键
func impactSummaryKey(accountID uint) string {
	return fmt.Sprintf("impact:summary:%d", accountID)
}

// CacheImpactSummary caches an account's impact summary with the configured TTL
func (s *RedisService) CacheImpactSummary(accountID uint, summary interface{}) error {
	ttl := time.Duration(s.Config.ImpactCacheTTLMinutes) * time.Minute
	return s.Set(impactSummaryKey(accountID), summary, ttl)
}

// GetCachedImpactSummary gets an account's impact summary from cache
func (s *RedisService) GetCachedImpactSummary(accountID uint, dest interface{}) error {
	return s.Get(impactSummaryKey(accountID), dest)
}

// InvalidateImpactSummary removes an account's impact summary from cache
func (s *RedisService) InvalidateImpactSummary(accountID uint) error {
	return s.Delete(impactSummaryKey(accountID))
}
