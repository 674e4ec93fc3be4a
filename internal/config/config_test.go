package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(fixturePath("valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.ListenPort != 7311 || cfg.ListenHost != "127.0.0.1" {
		t.Fatalf("监听配置解析错误: %+v", cfg)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		t.Fatalf("DataDir 应被转换为绝对路径: %s", cfg.DataDir)
	}
	if cfg.UpstreamTimeout.DurationValue() != 10*time.Second {
		t.Fatalf("UpstreamTimeout 解析错误: %s", cfg.UpstreamTimeout.DurationValue())
	}
	if cfg.InitialBackoff.DurationValue() != 200*time.Millisecond {
		t.Fatalf("InitialBackoff 解析错误: %s", cfg.InitialBackoff.DurationValue())
	}
	if cfg.UserAgent != "thai-guide/1.0" {
		t.Fatalf("UserAgent 解析错误: %s", cfg.UserAgent)
	}
	if cfg.CacheDir() != filepath.Join(cfg.DataDir, CacheDirName) {
		t.Fatalf("CacheDir 应位于 DataDir 下: %s", cfg.CacheDir())
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	if _, err := Load(fixturePath("invalid.toml")); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "DataDir = \""+filepath.ToSlash(dataDir)+"\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.ListenHost != "127.0.0.1" || cfg.ListenPort != 7311 {
		t.Fatalf("监听默认值错误: %s", cfg.ListenAddr())
	}
	if cfg.LogLevel != "info" || cfg.LogMaxSize != 100 || cfg.LogMaxBackups != 10 || !cfg.LogCompress {
		t.Fatalf("日志默认值错误: %+v", cfg)
	}
	if cfg.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("UpstreamTimeout 默认值错误: %s", cfg.UpstreamTimeout.DurationValue())
	}
	if cfg.MaxRetries != 2 || cfg.MaxBackoff.DurationValue() != 5*time.Second {
		t.Fatalf("重试默认值错误: %+v", cfg)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled 默认应开启")
	}
}

func TestLoadFallsBackToUserConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cfg, err := Load(writeConfig(t, "LogLevel = \"warn\"\n"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	expected, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir 错误: %v", err)
	}
	if cfg.DataDir != expected {
		t.Fatalf("DataDir 应回落到 %s, got %s", expected, cfg.DataDir)
	}
	if !strings.HasSuffix(cfg.DataDir, AppDirName) {
		t.Fatalf("DataDir 应以应用目录结尾: %s", cfg.DataDir)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.ListenPort = 70000
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "ListenPort" {
		t.Fatalf("ListenPort 超出范围应当报错, got %v", err)
	}
	if !strings.Contains(err.Error(), "配置项 ListenPort 无效") {
		t.Fatalf("错误信息应指出配置项: %v", err)
	}
}

func TestValidateListenHost(t *testing.T) {
	testCases := []struct {
		name      string
		host      string
		shouldErr bool
	}{
		{"loopback", "127.0.0.1", false},
		{"localhost", "localhost", false},
		{"ipv6", "::1", false},
		{"empty", "", true},
		{"scheme", "http://127.0.0.1", true},
		{"with port", "localhost:7311", true},
		{"with path", "127.0.0.1/image", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ListenHost = tc.host
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for host %q", tc.host)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for host %q: %v", tc.host, err)
			}
		})
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未知日志级别应当报错")
	}
}

func TestValidateRejectsInvertedBackoff(t *testing.T) {
	cfg := validConfig()
	cfg.InitialBackoff = Duration(10 * time.Second)
	cfg.MaxBackoff = Duration(time.Second)
	if err := cfg.Validate(); err == nil {
		t.Fatalf("MaxBackoff 小于 InitialBackoff 应当报错")
	}
}

func TestValidateRejectsNegativeRetries(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("负数重试次数应当报错")
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("45")); err != nil || d.DurationValue() != 45*time.Second {
		t.Fatalf("纯数字应按秒解析, got %s err=%v", d.DurationValue(), err)
	}
	if err := d.UnmarshalText([]byte("1m30s")); err != nil || d.DurationValue() != 90*time.Second {
		t.Fatalf("Duration 字符串解析错误, got %s err=%v", d.DurationValue(), err)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("非法值应返回错误")
	}
}

func validConfig() *Config {
	return &Config{
		ListenHost:      "127.0.0.1",
		ListenPort:      7311,
		DataDir:         "/tmp/thai-guide",
		LogLevel:        "info",
		UpstreamTimeout: Duration(30 * time.Second),
		MaxRetries:      2,
		InitialBackoff:  Duration(500 * time.Millisecond),
		MaxBackoff:      Duration(5 * time.Second),
	}
}
