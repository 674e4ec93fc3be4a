package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理图片缓存目录的读写。磁盘布局遵循：
//
//	<DataDir>/image-cache/<sha1(url)><ext>    # 原始图片字节
//
// 每个条目仅由一个文件组成，Size/AccessTime/ModTime 由文件系统提供。
type Store interface {
	// Dir 返回缓存目录的绝对路径。
	Dir() string

	// Stat 返回条目的大小与时间戳。若不存在则返回 ErrNotFound。
	Stat(ctx context.Context, name string) (Entry, error)

	// ReadFull 读取整个文件。
	ReadFull(ctx context.Context, name string) ([]byte, error)

	// ReadRange 从 start 开始精确读取 length 字节。
	ReadRange(ctx context.Context, name string, start, length int64) ([]byte, error)

	// Write 以临时文件 + rename 的方式整体覆盖条目。
	Write(ctx context.Context, name string, body []byte) (*Entry, error)

	// Touch 刷新访问时间（保持 ModTime 不变），调用方通常忽略其错误。
	Touch(ctx context.Context, name string) error

	// Delete 删除条目，文件已不存在时不视为错误。
	Delete(ctx context.Context, name string) error

	// List 枚举目录内全部条目；stat 失败（已被并发删除）的条目会被跳过。
	List(ctx context.Context) ([]Entry, error)

	// Clear 删除并重建缓存目录。
	Clear(ctx context.Context) error
}

// Entry 描述一个缓存文件及其文件系统元数据。
type Entry struct {
	Name       string    `json:"name"`
	FilePath   string    `json:"file_path"`
	SizeBytes  int64     `json:"size_bytes"`
	AccessTime time.Time `json:"access_time"`
	ModTime    time.Time `json:"mod_time"`
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
