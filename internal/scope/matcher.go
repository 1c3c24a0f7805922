// Package scope decides whether a request URL falls inside the include/exclude
// pattern lists configured for the entry document. Patterns are regular
// expressions evaluated against the absolute request URL, so `/admin(/.*)?$`
// and `^https://app\.example\.com/docs` are both valid forms.
package scope

import (
	"fmt"
	"net/url"
	"regexp"
	"sync"
)

// Matcher 缓存已编译的正则，所有请求共享同一实例。
type Matcher struct {
	compiled sync.Map // key: pattern, value: *regexp.Regexp
}

// NewMatcher 返回空缓存的 Matcher。
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Matches 报告 rawURL 是否命中任意一条规则；非法规则视为不命中。
func (m *Matcher) Matches(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	candidates := []string{rawURL}
	if decoded, err := url.PathUnescape(rawURL); err == nil && decoded != rawURL {
		candidates = append(candidates, decoded)
	}
	for _, pattern := range patterns {
		re, err := m.lookup(pattern)
		if err != nil {
			continue
		}
		for _, candidate := range candidates {
			if re.MatchString(candidate) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) lookup(pattern string) (*regexp.Regexp, error) {
	if cached, ok := m.compiled.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := m.compiled.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// Validate 在加载配置时提前暴露非法正则。
func Validate(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid scope pattern %q: %w", pattern, err)
	}
	return nil
}
