package config

import (
	"os"
	"path/filepath"
	"testing"
)

// fixturePath 返回 testdata 下的配置样例路径，不检查文件是否存在。
func fixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// writeConfig 把 TOML 内容写入临时目录并返回路径。
func writeConfig(t *testing.T, toml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imagecache.toml")
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
