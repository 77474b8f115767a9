// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"os"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 客户端，并维护一个已加载 Lua 脚本的注册表。
// 需要原子性的多键操作（锁释放、指纹批量写入）统一通过脚本执行。
type Client struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 创建一个新的 Redis 客户端封装。
func NewClient(addr, password string, db int) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{
		rdb:     rdb,
		scripts: make(map[string]*goredis.Script),
	}
}

// GetClient 暴露底层客户端，供需要 Pipeline 等高级能力的调用方使用。
func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

// LoadScriptFromContent 注册一段 Lua 脚本，后续通过名字执行。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if content == "" {
		return fmt.Errorf("script %q has empty content", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// LoadScriptFromFile 从文件加载并注册一段 Lua 脚本。
func (c *Client) LoadScriptFromFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file %s: %w", path, err)
	}
	return c.LoadScriptFromContent(name, string(data))
}

// RunScript 执行一段已注册的脚本。go-redis 的 Script.Run 会优先使用
// EVALSHA，脚本未缓存时自动降级为 EVAL，调用方无需关心。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %q is not registered", name)
	}
	return script.Run(ctx, c.rdb, keys, args...).Result()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
