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

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Config 是 TOML 文件映射的整体结构。缓存预算与 TTL 为固定常量，不在此配置。
type Config struct {
	ListenHost string `mapstructure:"ListenHost"`
	ListenPort int    `mapstructure:"ListenPort"`
	DataDir    string `mapstructure:"DataDir"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	MaxBackoff      Duration `mapstructure:"MaxBackoff"`
	UserAgent       string   `mapstructure:"UserAgent"`

	MetricsEnabled bool `mapstructure:"MetricsEnabled"`
}

// CacheDirName 是 DataDir 下存放图片缓存的子目录。
const CacheDirName = "image-cache"

// CacheDir 返回图片缓存目录。
func (c *Config) CacheDir() string {
	return joinPath(c.DataDir, CacheDirName)
}

// ListenAddr 返回 Fiber 监听地址。
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}
