package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goflare.io/kvrest/pkg/serialization"
)

// Config 服務的完整配置
type Config struct {
	Env      string
	HTTPAddr string

	// LogLevel 覆寫 Env 對應的預設日誌等級，空字串表示不覆寫
	LogLevel string

	// ShardCount 決定每個 key 熔斷器的分片數量
	ShardCount uint64

	Redis            RedisConfig
	LocalCache       LocalCacheConfig
	KeyFilter        KeyFilterConfig
	ResilienceConfig ResilienceConfig
	Serialization    SerializationConfig
	Security         SecurityConfig
	Logger           *zap.Logger
}

// RedisConfig Redis 連線配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LocalCacheConfig 本地快取配置，僅作用於 scalar 讀取
type LocalCacheConfig struct {
	Enabled    bool
	MaxCost    int64
	TTL        time.Duration
	WarmupKeys []string
}

// KeyFilterConfig 布隆過濾器的配置
type KeyFilterConfig struct {
	Enabled           bool
	ExpectedItems     uint
	FalsePositiveRate float64
	RebuildInterval   time.Duration
	ScanCount         int64
}

// ResilienceConfig 用於設置重試和熔斷器
type ResilienceConfig struct {
	GlobalCircuitBreaker gobreaker.Settings
	KeyCircuitBreaker    gobreaker.Settings
	Retry                RetryConfig
}

// RetryConfig 重試策略
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    string
}

// SerializationConfig 序列化相關配置
type SerializationConfig struct {
	Type string
}

// SecurityConfig HTTP 入口的保護配置
type SecurityConfig struct {
	RateLimitRPM       int
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrShardCountZero = errors.New("shard count must be at least 1")
	ErrEmptyRedisAddr = errors.New("redis address must not be empty")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Env:        "dev",
		HTTPAddr:   ":8011",
		ShardCount: defaultShardCount(),
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			PoolSize:     10 * runtime.GOMAXPROCS(0),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		LocalCache: LocalCacheConfig{
			MaxCost: 64 << 20,
			TTL:     5 * time.Second,
		},
		KeyFilter: KeyFilterConfig{
			ExpectedItems:     100000,
			FalsePositiveRate: 0.01,
			RebuildInterval:   10 * time.Minute,
			ScanCount:         1000,
		},
		ResilienceConfig: ResilienceConfig{
			GlobalCircuitBreaker: gobreaker.Settings{
				Name:        "GlobalCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			KeyCircuitBreaker: gobreaker.Settings{
				Name:        "KeyCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 3
				},
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    400 * time.Millisecond,
				Factor:      2,
				Jitter:      0.1,
				Strategy:    "exponential",
			},
		},
		Serialization: SerializationConfig{
			Type: serialization.JSONType,
		},
		Security: SecurityConfig{
			RateLimitRPM:       6000,
			CORSAllowedOrigins: []string{"*"},
			RequestTimeout:     15 * time.Second,
		},
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %w", err)
		}
		cfg.Logger = logger
	}

	// 最終檢查
	if cfg.ShardCount == 0 {
		return nil, ErrShardCountZero
	}
	if cfg.Redis.Addr == "" {
		return nil, ErrEmptyRedisAddr
	}
	if _, err := serialization.NewCodec(cfg.Serialization.Type); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load 從環境變數 (KVREST_*) 讀取配置，再套用額外選項
func Load(options ...Option) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KVREST")
	v.AutomaticEnv()

	v.SetDefault("env", "dev")
	v.SetDefault("http_addr", ":8011")
	v.SetDefault("log_level", "")
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("serialization", serialization.JSONType)
	v.SetDefault("local_cache", false)
	v.SetDefault("local_cache_ttl", "5s")
	v.SetDefault("key_filter", false)
	v.SetDefault("key_filter_rebuild_interval", "10m")
	v.SetDefault("rate_limit_rpm", 6000)
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("retry_strategy", "exponential")

	fromEnv := []Option{
		func(c *Config) error {
			c.Env = v.GetString("env")
			c.HTTPAddr = v.GetString("http_addr")
			c.LogLevel = v.GetString("log_level")
			c.Redis.Addr = v.GetString("redis_addr")
			c.Redis.Password = v.GetString("redis_password")
			c.Redis.DB = v.GetInt("redis_db")
			c.Serialization.Type = v.GetString("serialization")
			c.LocalCache.Enabled = v.GetBool("local_cache")
			c.LocalCache.TTL = v.GetDuration("local_cache_ttl")
			c.LocalCache.WarmupKeys = splitList(v.GetString("warmup_keys"))
			c.KeyFilter.Enabled = v.GetBool("key_filter")
			c.KeyFilter.RebuildInterval = v.GetDuration("key_filter_rebuild_interval")
			c.ResilienceConfig.Retry.Strategy = v.GetString("retry_strategy")
			c.Security.RateLimitRPM = v.GetInt("rate_limit_rpm")
			c.Security.CORSAllowedOrigins = splitList(v.GetString("cors_allowed_origins"))
			c.Security.RequestTimeout = v.GetDuration("request_timeout")
			return nil
		},
	}

	cfg, err := NewConfig(append(fromEnv, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithShardCount 設置分片數量
func WithShardCount(count uint64) Option {
	return func(c *Config) error {
		if count == 0 {
			return ErrShardCountZero
		}
		c.ShardCount = count
		return nil
	}
}

// WithRedisAddr 設置 Redis 位址
func WithRedisAddr(addr string) Option {
	return func(c *Config) error {
		if addr == "" {
			return ErrEmptyRedisAddr
		}
		c.Redis.Addr = addr
		return nil
	}
}

// WithSerialization 設置序列化方式
func WithSerialization(typ string) Option {
	return func(c *Config) error {
		if _, err := serialization.NewCodec(typ); err != nil {
			return err
		}
		c.Serialization.Type = typ
		return nil
	}
}

// WithLocalCache 啟用本地快取
func WithLocalCache(maxCost int64, ttl time.Duration, warmupKeys ...string) Option {
	return func(c *Config) error {
		if maxCost <= 0 {
			return errors.New("local cache max cost must be greater than 0")
		}
		if ttl <= 0 {
			return errors.New("local cache ttl must be greater than 0")
		}
		c.LocalCache = LocalCacheConfig{
			Enabled:    true,
			MaxCost:    maxCost,
			TTL:        ttl,
			WarmupKeys: warmupKeys,
		}
		return nil
	}
}

// WithKeyFilter 啟用布隆過濾器
func WithKeyFilter(expectedItems uint, falsePositiveRate float64, rebuildInterval time.Duration) Option {
	return func(c *Config) error {
		if expectedItems == 0 {
			return errors.New("expected items must be greater than 0")
		}
		if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
			return errors.New("false positive rate must be between 0 and 1")
		}
		c.KeyFilter.Enabled = true
		c.KeyFilter.ExpectedItems = expectedItems
		c.KeyFilter.FalsePositiveRate = falsePositiveRate
		c.KeyFilter.RebuildInterval = rebuildInterval
		return nil
	}
}

// WithRetry 覆寫重試策略
func WithRetry(retry RetryConfig) Option {
	return func(c *Config) error {
		c.ResilienceConfig.Retry = retry
		return nil
	}
}

func defaultShardCount() uint64 {
	shards := uint64(runtime.NumCPU() * 4)
	return min(max(shards, 1), 256)
}
