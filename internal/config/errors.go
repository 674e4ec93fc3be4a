package config

import "fmt"

// FieldError 指出哪个配置键不合法，例如 ListenPort 越界或 MaxBackoff 小于
// InitialBackoff。--check-config 直接把它打印到 stderr。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("配置项 %s 无效: %s", e.Field, e.Reason)
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}
