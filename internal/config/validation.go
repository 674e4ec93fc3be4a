package config

import (
	"errors"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if err := validateHost(c.ListenHost); err != nil {
		return newFieldError("ListenHost", err.Error())
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return newFieldError("DataDir", "不能为空")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
	}
	if c.LogFilePath != "" {
		if c.LogMaxSize <= 0 {
			return newFieldError("LogMaxSize", "必须大于 0")
		}
		if c.LogMaxBackups < 0 {
			return newFieldError("LogMaxBackups", "不能为负数")
		}
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if c.MaxRetries < 0 {
		return newFieldError("MaxRetries", "不能为负数")
	}
	if c.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("InitialBackoff", "必须大于 0")
	}
	if c.MaxBackoff.DurationValue() < c.InitialBackoff.DurationValue() {
		return newFieldError("MaxBackoff", "不能小于 InitialBackoff")
	}
	return nil
}

func validateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("不能为空")
	}
	if strings.ContainsAny(host, "/ ") {
		return errors.New("不允许包含路径或空格")
	}
	if strings.HasPrefix(host, "http") {
		return errors.New("不应包含协议头")
	}
	if ip := net.ParseIP(host); ip == nil && strings.Contains(host, ":") {
		return errors.New("端口请使用 ListenPort 配置")
	}
	return nil
}
