package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/teamledger/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "tl"
	pingTimeout      = 3 * time.Second
)

// store 共享的 Redis 连接与键前缀，未启用时为 nil
type store struct {
	client *redis.Client
	prefix string
}

var current *store

// InitRedis 初始化 Redis（目录缓存、结算租约、限流共用）。
// 连通性检查失败时仍保留客户端并返回错误，go-redis 会自动重连。
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		current = nil
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	current = &store{
		client: redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: prefix,
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return current.client.Ping(ctx).Err()
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	return current != nil && current.client != nil
}

// Client 获取 Redis 客户端，未启用时返回 nil
func Client() *redis.Client {
	if !Enabled() {
		return nil
	}
	return current.client
}

// GetJSON 读取 JSON 缓存，未命中返回 false
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !Enabled() {
		return false, nil
	}
	raw, err := current.client.Get(ctx, buildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return current.client.Set(ctx, buildKey(key), payload, ttl).Err()
}

// Del 删除缓存
func Del(ctx context.Context, key string) error {
	if !Enabled() {
		return nil
	}
	return current.client.Del(ctx, buildKey(key)).Err()
}

func buildKey(key string) string {
	prefix := defaultKeyPrefix
	if current != nil {
		prefix = current.prefix
	}
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		return prefix + ":" + trimmed
	}
	return prefix
}
