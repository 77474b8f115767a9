// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个应用的显式配置。
// 所有业务代码都通过构造函数注入拿到自己关心的片段，禁止在业务逻辑里读环境变量。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	// Reservation 预订/锁相关参数
	Reservation ReservationConfig `yaml:"reservation"`
	// Fulfillment 拆单履约相关参数
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
	// Sync 渠道同步相关参数
	Sync SyncConfig `yaml:"sync"`
	// Channels 出站渠道列表（名称、推送地址、路由规则表达式）
	Channels []ChannelConfig `yaml:"channels"`
}

type ReservationConfig struct {
	// LockTTLSeconds 单个 (资源,日期) 锁的租约时长，秒级，保证崩溃后最终释放
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// LockTTL 返回锁租约时长，未配置时给出秒级默认值。
func (c ReservationConfig) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}

type FulfillmentConfig struct {
	// MaxAttempts 乐观锁扣减的最大尝试次数
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBaseMs 重试退避基准，毫秒；实际退避在 [base, base+jitter) 内随机
	BackoffBaseMs   int `yaml:"backoff_base_ms"`
	BackoffJitterMs int `yaml:"backoff_jitter_ms"`
	// UpstreamTimeoutSeconds 调用上游资源方确认接口的超时
	UpstreamTimeoutSeconds int `yaml:"upstream_timeout_seconds"`
	// UpstreamEndpoint 资源方网关地址，留空时通过 Nacos 按服务名发现
	UpstreamEndpoint    string `yaml:"upstream_endpoint"`
	UpstreamServiceName string `yaml:"upstream_service_name"`
}

func (c FulfillmentConfig) Attempts() int {
	if c.MaxAttempts <= 0 {
		return 10
	}
	return c.MaxAttempts
}

func (c FulfillmentConfig) BackoffBase() time.Duration {
	if c.BackoffBaseMs <= 0 {
		return 20 * time.Millisecond
	}
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

func (c FulfillmentConfig) BackoffJitter() time.Duration {
	if c.BackoffJitterMs <= 0 {
		return 30 * time.Millisecond
	}
	return time.Duration(c.BackoffJitterMs) * time.Millisecond
}

func (c FulfillmentConfig) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

type SyncConfig struct {
	// FingerprintTTLHours 推送指纹的缓存时长，小时
	FingerprintTTLHours int `yaml:"fingerprint_ttl_hours"`
	// PushConcurrency 渠道推送的并发上限
	PushConcurrency int `yaml:"push_concurrency"`
	// BookingEndpoint 预订服务地址，推送失败时向其上报异常单；留空则只做指纹失效重试
	BookingEndpoint string `yaml:"booking_endpoint"`
}

func (c SyncConfig) FingerprintTTL() time.Duration {
	if c.FingerprintTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.FingerprintTTLHours) * time.Hour
}

func (c SyncConfig) Concurrency() int {
	if c.PushConcurrency <= 0 {
		return 8
	}
	return c.PushConcurrency
}

type ChannelConfig struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	// Rule 是一个 CEL 表达式，决定变更是否推送到该渠道，留空表示全量推送
	Rule string `yaml:"rule"`
}

type InfraConfig struct {
	Mysql struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Zookeeper struct {
		Servers []string `yaml:"servers"`
	} `yaml:"zookeeper"`
	Nacos struct {
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

var currentConfig *Config

// LoadConfig 从 yaml 文件加载配置，并用环境变量覆盖基础设施地址，
// 方便在容器环境中不改文件就能切换依赖。
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	currentConfig = cfg
	return cfg, nil
}

// GetCurrentConfig 返回最近一次加载的配置。仅供 bootstrap 自身和入口代码使用，
// 业务组件一律走构造函数注入。
func GetCurrentConfig() *Config {
	if currentConfig == nil {
		currentConfig = &Config{}
		applyEnvOverrides(currentConfig)
	}
	return currentConfig
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("ZK_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Infra.Nacos.Group = v
	}

	// 基础设施地址兜底，本地开发零配置可跑
	if cfg.Infra.Redis.Addr == "" {
		cfg.Infra.Redis.Addr = "localhost:6379"
	}
	if len(cfg.Infra.Kafka.Brokers) == 0 {
		cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Infra.Jaeger.Endpoint == "" {
		cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	}
	if cfg.Infra.Nacos.ServerAddrs == "" {
		cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	}
}
