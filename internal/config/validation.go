package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/any-hub/esw-index/internal/scope"
)

var supportedBackends = map[string]struct{}{
	BackendMemory:  {},
	BackendFS:      {},
	BackendLevelDB: {},
	BackendRedis:   {},
}

const supportedBackendList = "memory|fs|leveldb|redis"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, ok := supportedBackends[g.StorageBackend]; !ok {
		return newFieldError("Global.StorageBackend", "仅支持 "+supportedBackendList)
	}
	switch g.StorageBackend {
	case BackendFS, BackendLevelDB:
		if g.StoragePath == "" {
			return newFieldError("Global.StoragePath", "不能为空")
		}
	case BackendRedis:
		if g.RedisAddr == "" {
			return newFieldError("Global.RedisAddr", "redis 后端必须配置地址")
		}
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if err := validateHTTPURL(g.Upstream); err != nil {
		return fmt.Errorf("Global.Upstream: %w", err)
	}

	return c.Index.validate()
}

func (i IndexConfig) validate() error {
	if err := validateHTTPURL(i.Origin); err != nil {
		return fmt.Errorf("%s: %w", indexField("Origin"), err)
	}
	if parsed, _ := url.Parse(i.Origin); parsed != nil && strings.Trim(parsed.Path, "/") != "" {
		return newFieldError(indexField("Origin"), "Origin 不允许包含路径")
	}
	if !strings.HasPrefix(i.EntryDocumentPath, "/") {
		return newFieldError(indexField("EntryDocumentPath"), "必须以 / 开头")
	}
	if i.Version == "" {
		return newFieldError(indexField("Version"), "不能为空")
	}
	if strings.ContainsAny(i.Version, " /") {
		return newFieldError(indexField("Version"), "不允许包含空格或 /")
	}
	switch i.Strategy {
	case StrategyCacheFirst, StrategyFallback:
	default:
		return newFieldError(indexField("Strategy"), "仅支持 cache-first/fallback")
	}
	if i.TimeoutMs <= 0 {
		return newFieldError(indexField("TimeoutMs"), "必须大于 0")
	}
	for idx, pattern := range i.IncludeScope {
		if err := scope.Validate(pattern); err != nil {
			return newFieldError(scopeField("IncludeScope", idx), err.Error())
		}
	}
	for idx, pattern := range i.ExcludeScope {
		if err := scope.Validate(pattern); err != nil {
			return newFieldError(scopeField("ExcludeScope", idx), err.Error())
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
