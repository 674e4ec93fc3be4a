package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// DefaultExtension 用于 URL 路径中没有可用扩展名的情况。
const DefaultExtension = ".img"

const maxExtensionLength = 10

// IsHTTPURL 仅接受带 Host 的 http/https 绝对地址。
func IsHTTPURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Host != ""
}

// FileName 将源 URL 映射为缓存文件名：sha1(url) 的十六进制 + 原始扩展名。
// 相同 URL 在任何进程中都得到相同结果。
func FileName(sourceURL string) string {
	sum := sha1.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:]) + Extension(sourceURL)
}

// Extension 提取 URL 路径部分（未解码）的扩展名，缺失或含非法字符时返回 DefaultExtension。
func Extension(sourceURL string) string {
	p := sourceURL
	if parsed, err := url.Parse(sourceURL); err == nil {
		// 保留百分号编码：a%2Ejpg 没有扩展名。
		p = parsed.EscapedPath()
	} else if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}

	ext := path.Ext(p)
	if len(ext) < 2 || len(ext) > maxExtensionLength {
		return DefaultExtension
	}
	for _, r := range ext[1:] {
		if !isExtensionRune(r) {
			return DefaultExtension
		}
	}
	return ext
}

func isExtensionRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
