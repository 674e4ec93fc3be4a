package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// cliOutput 收集 run 写往 stdOut/stdErr 的内容。
type cliOutput struct {
	out *bytes.Buffer
	err *bytes.Buffer
}

// captureCLIOutput 在测试期间把 stdOut/stdErr 换成内存缓冲，结束后恢复。
func captureCLIOutput(t *testing.T) *cliOutput {
	t.Helper()
	captured := &cliOutput{out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = captured.out, captured.err
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return captured
}

// configFixture 定位 internal/config/testdata 下的样例配置。
// go test 以包目录（即模块根目录）作为工作目录。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("internal", "config", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("找不到配置样例 %s: %v", name, err)
	}
	return path
}
