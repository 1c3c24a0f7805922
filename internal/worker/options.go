package worker

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/any-hub/esw-index/internal/config"
)

// CachePrefix 是所有入口文档缓存共享的前缀，完整名称为 CachePrefix-<version>。
const CachePrefix = "esw-index"

// TestsPath 是开发环境下测试页面的保留路径，不会被拦截。
const TestsPath = "/tests"

// Strategy 决定入口文档的获取方式。
type Strategy string

const (
	StrategyCacheFirst Strategy = config.StrategyCacheFirst
	StrategyFallback   Strategy = config.StrategyFallback
)

// Options 是启动时构建一次的只读配置，显式传入 Classifier/Engine/Generations。
type Options struct {
	Origin            *url.URL
	EntryDocumentPath string
	Environment       string
	Version           string
	Strategy          Strategy
	Timeout           time.Duration
	IncludeScope      []string
	ExcludeScope      []string
}

// OptionsFromConfig 将 [Index] 段转换为 Options，复制切片避免外部修改。
func OptionsFromConfig(cfg config.IndexConfig) (Options, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return Options{}, fmt.Errorf("parse origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return Options{}, fmt.Errorf("origin must be absolute: %s", cfg.Origin)
	}
	strategy := StrategyCacheFirst
	if Strategy(cfg.Strategy) == StrategyFallback {
		strategy = StrategyFallback
	}
	return Options{
		Origin:            &url.URL{Scheme: origin.Scheme, Host: origin.Host},
		EntryDocumentPath: cfg.EntryDocumentPath,
		Environment:       cfg.Environment,
		Version:           cfg.Version,
		Strategy:          strategy,
		Timeout:           cfg.Timeout(),
		IncludeScope:      append([]string(nil), cfg.IncludeScope...),
		ExcludeScope:      append([]string(nil), cfg.ExcludeScope...),
	}, nil
}

// CacheName 返回当前代际的缓存名称。
func (o Options) CacheName() string {
	return CachePrefix + "-" + o.Version
}

// EntryDocumentURL 将入口文档路径解析为基于 Origin 的绝对 URL，作为缓存 key。
func (o Options) EntryDocumentURL() string {
	if o.Origin == nil {
		return o.EntryDocumentPath
	}
	ref, err := url.Parse(o.EntryDocumentPath)
	if err != nil {
		return strings.TrimRight(o.Origin.String(), "/") + o.EntryDocumentPath
	}
	return o.Origin.ResolveReference(ref).String()
}

func (o Options) isDevelopment() bool {
	return o.Environment == config.EnvironmentDevelopment
}
