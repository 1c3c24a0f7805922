package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// indexField 用于拼接 [Index] 段字段路径，输出 Index.Field 形式。
func indexField(field string) string {
	return fmt.Sprintf("Index.%s", field)
}

// scopeField 定位到具体的 scope 规则，例如 Index.ExcludeScope[1]。
func scopeField(list string, idx int) string {
	return fmt.Sprintf("Index.%s[%d]", list, idx)
}
