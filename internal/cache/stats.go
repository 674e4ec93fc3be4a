package cache

import "context"

// Stats 汇总缓存目录的文件数与总字节数，对应桌面端的 getImageCacheStats。
type Stats struct {
	FileCount  int    `json:"fileCount"`
	TotalBytes int64  `json:"totalBytes"`
	Path       string `json:"path"`
}

// Summarize 基于一次 List 结果计算统计信息。
func Summarize(dir string, entries []Entry) Stats {
	stats := Stats{Path: dir}
	for _, entry := range entries {
		stats.FileCount++
		stats.TotalBytes += entry.SizeBytes
	}
	return stats
}

// CollectStats 枚举 store 并返回统计信息。
func CollectStats(ctx context.Context, store Store) (Stats, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return Stats{Path: store.Dir()}, err
	}
	return Summarize(store.Dir(), entries), nil
}
