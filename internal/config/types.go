package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 缓存后端与策略的可选值。
const (
	BackendMemory  = "memory"
	BackendFS      = "fs"
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"

	StrategyCacheFirst = "cache-first"
	StrategyFallback   = "fallback"

	EnvironmentDevelopment = "development"
)

// GlobalConfig 描述全局运行时行为：监听端口、日志、缓存后端与上游。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StorageBackend  string   `mapstructure:"StorageBackend"`
	StoragePath     string   `mapstructure:"StoragePath"`
	RedisAddr       string   `mapstructure:"RedisAddr"`
	RedisDB         int      `mapstructure:"RedisDB"`
	RedisPassword   string   `mapstructure:"RedisPassword"`
	Upstream        string   `mapstructure:"Upstream"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// IndexConfig 对应 [Index] 段，决定入口文档的缓存与拦截策略。
type IndexConfig struct {
	Origin            string   `mapstructure:"Origin"`
	EntryDocumentPath string   `mapstructure:"EntryDocumentPath"`
	Environment       string   `mapstructure:"Environment"`
	Version           string   `mapstructure:"Version"`
	Strategy          string   `mapstructure:"Strategy"`
	TimeoutMs         int      `mapstructure:"TimeoutMs"`
	IncludeScope      []string `mapstructure:"IncludeScope"`
	ExcludeScope      []string `mapstructure:"ExcludeScope"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Index  IndexConfig  `mapstructure:"Index"`
}

// Timeout 将 TimeoutMs 换算为 time.Duration。
func (i IndexConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutMs) * time.Millisecond
}

// IsDevelopment 表示当前环境标签是否为 development。
func (i IndexConfig) IsDevelopment() bool {
	return i.Environment == EnvironmentDevelopment
}

// ScopeSummary 输出 include/exclude 规则数量，例如 include:2,exclude:0，供日志字段使用。
func (i IndexConfig) ScopeSummary() string {
	return fmt.Sprintf("include:%d,exclude:%d", len(i.IncludeScope), len(i.ExcludeScope))
}
