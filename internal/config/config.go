// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 在 main 中加载一次，之后以只读方式注入到各个组件。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`
	BasePath string `mapstructure:"base_path"`
	// AllowOrigins 为空时允许所有来源。
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 存储关系型数据库的配置。
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // mysql | sqlite
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内的会话锁。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                   string `mapstructure:"secret"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
}

// AccessTokenTTL 返回 access token 的有效期。
func (c JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储用量事件管道的配置。Brokers 为空时用量直接写库。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// Enabled 报告是否配置了 Kafka。
func (c KafkaConfig) Enabled() bool { return c.Brokers != "" }

// ElasticsearchConfig 存储消息检索索引的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// Enabled 报告是否配置了 Elasticsearch。
func (c ElasticsearchConfig) Enabled() bool { return c.Addresses != "" }

// MinIOConfig 存储会话导出所用对象存储的配置。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// Enabled 报告是否配置了 MinIO。
func (c MinIOConfig) Enabled() bool { return c.Endpoint != "" }

// LLMConfig 存储上游大模型（Anthropic Messages API）的配置。
type LLMConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Version      string `mapstructure:"version"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	DefaultModel string `mapstructure:"default_model"`
	DefaultMode  string `mapstructure:"default_mode"`
	// Models 将请求中的模型别名（haiku/sonnet/opus）映射到上游模型 ID。
	Models map[string]string `mapstructure:"models"`
	// Modes 将会话模式映射到 system prompt。
	Modes map[string]string `mapstructure:"modes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.base_path", "")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.access_token_expire_minutes", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("kafka.topic", "usage-events")
	v.SetDefault("kafka.group_id", "parallax-usage-consumer")

	v.SetDefault("elasticsearch.index_name", "conversation_messages")

	v.SetDefault("minio.bucket_name", "conversation-exports")
	v.SetDefault("minio.url_expiry", 15*time.Minute)

	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.version", "2023-06-01")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.default_model", "haiku")
	v.SetDefault("llm.default_mode", "balanced")
	v.SetDefault("llm.models", map[string]string{
		"haiku":  "claude-3-5-haiku-20241022",
		"sonnet": "claude-3-5-sonnet-20241022",
		"opus":   "claude-opus-4-20250514",
	})
	v.SetDefault("llm.modes", map[string]string{
		"balanced": "You are a helpful AI assistant. Provide clear, accurate, and balanced responses.",
	})
}

// 沿用原有部署中使用的环境变量名。
var envBindings = map[string][]string{
	"database.dsn":                    {"DATABASE_URL"},
	"database.driver":                 {"DATABASE_DRIVER"},
	"jwt.secret":                      {"JWT_SECRET"},
	"jwt.access_token_expire_minutes": {"ACCESS_TOKEN_EXPIRE_MINUTES"},
	"llm.api_key":                     {"ANTHROPIC_API_KEY"},
	"redis.addr":                      {"REDIS_ADDR"},
	"redis.password":                  {"REDIS_PASSWORD"},
	"kafka.brokers":                   {"KAFKA_BROKERS"},
	"elasticsearch.addresses":         {"ELASTICSEARCH_ADDRESSES"},
	"minio.endpoint":                  {"MINIO_ENDPOINT"},
	"minio.access_key_id":             {"MINIO_ACCESS_KEY"},
	"minio.secret_access_key":         {"MINIO_SECRET_KEY"},
	"server.port":                     {"PORT"},
}

// Load 从指定路径读取 YAML 配置，并叠加 .env 与环境变量。
// 配置文件不存在时仅使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	// .env 只在本地开发时存在，加载失败不视为错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败 %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查启动所必需的配置项。
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret 未配置")
	}
	if c.JWT.AccessTokenExpireMinutes <= 0 {
		return errors.New("jwt.access_token_expire_minutes 必须大于 0")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if _, ok := c.LLM.Models[c.LLM.DefaultModel]; !ok {
		return fmt.Errorf("llm.default_model %q 不在 llm.models 中", c.LLM.DefaultModel)
	}
	if _, ok := c.LLM.Modes[c.LLM.DefaultMode]; !ok {
		return fmt.Errorf("llm.default_mode %q 不在 llm.modes 中", c.LLM.DefaultMode)
	}
	return nil
}
