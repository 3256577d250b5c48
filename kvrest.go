// Package kvrest serves a Redis key-value store over a small REST API.
//
// A Client bundles the cache facade and its HTTP handler:
//
//	c, err := kvrest.New(ctx, kvrest.WithRedisAddr("localhost:6379"))
//	if err != nil { ... }
//	defer c.Close()
//	http.ListenAndServe(":8011", c.Handler())
package kvrest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/kvrest/internal/api"
	"goflare.io/kvrest/internal/cache/facade"
	"goflare.io/kvrest/internal/config"
	"goflare.io/kvrest/internal/metrics"
)

// Option 定義初始化 kvrest 的選項
type Option = config.Option

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return config.WithLogger(logger)
}

// WithRedisAddr 設置 Redis 位址
func WithRedisAddr(addr string) Option {
	return config.WithRedisAddr(addr)
}

// WithShardCount 設置熔斷器分片數量
func WithShardCount(shardCount uint64) Option {
	return config.WithShardCount(shardCount)
}

// WithSerialization 設置序列化方式 ("json" 或 "gob")
func WithSerialization(serializer string) Option {
	return config.WithSerialization(serializer)
}

// WithLocalCache 啟用本地快取，maxBytes 為容量上限
func WithLocalCache(maxBytes int64, ttl time.Duration, warmupKeys ...string) Option {
	return config.WithLocalCache(maxBytes, ttl, warmupKeys...)
}

// WithKeyFilter 啟用 key 布隆過濾器
func WithKeyFilter(expectedItems uint, falsePositiveRate float64, rebuildInterval time.Duration) Option {
	return config.WithKeyFilter(expectedItems, falsePositiveRate, rebuildInterval)
}

// Client 定義 kvrest 的主要結構體
type Client struct {
	cache   *facade.Facade
	handler http.Handler
	metrics *metrics.Metrics
	config  *config.Config
	logger  *zap.Logger
}

// New 初始化 kvrest，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig 使用已載入的配置初始化 kvrest
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	// 初始化 Redis 客戶端
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache, err := facade.New(ctx, cfg, redisClient)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to initialize cache facade: %w", err)
	}

	m, metricsHandler, err := metrics.Setup("kvrest", cache)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	handler := api.NewHandler(cache, cfg.Logger)
	router := handler.Routes(api.NewMiddleware(cfg.Logger, m), cfg.Security, metricsHandler)

	return &Client{
		cache:   cache,
		handler: router,
		metrics: m,
		config:  cfg,
		logger:  cfg.Logger,
	}, nil
}

// Cache 返回快取操作介面
func (c *Client) Cache() facade.Operations {
	return c.cache
}

// Handler 返回 HTTP 路由
func (c *Client) Handler() http.Handler {
	return c.handler
}

func (c *Client) Config() *config.Config {
	return c.config
}

// Close 關閉 kvrest，釋放資源
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.metrics.Shutdown(ctx); err != nil {
		c.logger.Warn("Failed to shut down metrics", zap.Error(err))
	}
	return c.cache.Close()
}
