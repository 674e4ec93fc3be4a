package proxy

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NegativeTTL 是 404 结果的抑制窗口。
const NegativeTTL = 10 * time.Minute

// NegativeCache 记录最近返回 404 的源地址，窗口内的请求直接返回占位图。
// 过期条目在读取时被忽略；Purge 由维护循环周期调用以回收内存。
type NegativeCache struct {
	ttl     time.Duration
	entries *gocache.Cache
}

// NewNegativeCache 创建负缓存；ttl <= 0 时使用 NegativeTTL。
// 不启动 go-cache 自带的清理协程，清理由调用方驱动。
func NewNegativeCache(ttl time.Duration) *NegativeCache {
	if ttl <= 0 {
		ttl = NegativeTTL
	}
	return &NegativeCache{
		ttl:     ttl,
		entries: gocache.New(ttl, 0),
	}
}

// TTL returns the suppression window.
func (n *NegativeCache) TTL() time.Duration {
	return n.ttl
}

// Record 记录一次 404，重复记录会刷新失败时间。键被复制后保存，
// 调用方传入的字符串可以引用请求缓冲区。
func (n *NegativeCache) Record(url string) {
	n.entries.Set(strings.Clone(url), time.Now(), gocache.DefaultExpiration)
}

// Suppressed 判断 url 是否仍处于抑制窗口内。
func (n *NegativeCache) Suppressed(url string) bool {
	_, ok := n.entries.Get(url)
	return ok
}

// Purge 删除已过期条目并返回删除后的条目数。
func (n *NegativeCache) Purge() int {
	n.entries.DeleteExpired()
	return n.entries.ItemCount()
}

// Len 返回当前条目数，包含尚未清理的过期条目。
func (n *NegativeCache) Len() int {
	return n.entries.ItemCount()
}
