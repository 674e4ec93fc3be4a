package cache

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/metrics"
)

const (
	// DefaultMaxBytes 是缓存目录的软上限，两次清扫之间允许超出。
	DefaultMaxBytes int64 = 512 * 1024 * 1024
	// DefaultSweepInterval 限制清扫频率，与请求量无关。
	DefaultSweepInterval = 60 * time.Second
)

// SweeperOptions 控制清扫器的预算与时钟，零值使用默认常量。
type SweeperOptions struct {
	MaxBytes int64
	Interval time.Duration
	Now      func() time.Time
	Logger   *logrus.Logger
}

// SweepResult 描述一次清扫的统计。
type SweepResult struct {
	Scanned        int   `json:"scanned"`
	TotalBytes     int64 `json:"total_bytes"`
	Deleted        int   `json:"deleted"`
	FreedBytes     int64 `json:"freed_bytes"`
	RemainingBytes int64 `json:"remaining_bytes"`
}

// Sweeper 按最近访问时间批量淘汰文件，使目录大小逐步回落到 MaxBytes 以内。
// 写入方只调用 Notify，实际清扫由 Run 所在的维护 goroutine 完成。
type Sweeper struct {
	store    Store
	maxBytes int64
	interval time.Duration
	now      func() time.Time
	logger   *logrus.Logger

	running atomic.Bool
	lastRun atomic.Int64
	signals chan struct{}
}

// NewSweeper 构造清扫器；Run 需要由调用方在独立 goroutine 中启动。
func NewSweeper(store Store, opts SweeperOptions) *Sweeper {
	s := &Sweeper{
		store:    store,
		maxBytes: opts.MaxBytes,
		interval: opts.Interval,
		now:      opts.Now,
		logger:   opts.Logger,
		signals:  make(chan struct{}, 1),
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.interval <= 0 {
		s.interval = DefaultSweepInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// MaxBytes 返回当前预算。
func (s *Sweeper) MaxBytes() int64 {
	return s.maxBytes
}

// Notify 投递一次维护信号；队列已满时信号被合并，永不阻塞。
func (s *Sweeper) Notify() {
	select {
	case s.signals <- struct{}{}:
	default:
	}
}

// Run 消费维护信号直到 ctx 结束。
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.signals:
			result, ran, err := s.TrySweep(ctx)
			if err != nil {
				s.logger.WithError(err).WithField("action", "cache_sweep").Warn("cache_sweep_failed")
				continue
			}
			if ran && result.Deleted > 0 {
				s.logger.WithFields(logrus.Fields{
					"action":          "cache_sweep",
					"scanned":         result.Scanned,
					"deleted":         result.Deleted,
					"freed_bytes":     result.FreedBytes,
					"remaining_bytes": result.RemainingBytes,
					"max_bytes":       s.maxBytes,
				}).Info("cache_sweep_complete")
			}
		}
	}
}

// TrySweep 在单飞与限频保护下执行一次清扫；被跳过时 ran 为 false。
func (s *Sweeper) TrySweep(ctx context.Context) (SweepResult, bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepResult{}, false, nil
	}
	defer s.running.Store(false)

	now := s.now()
	if last := s.lastRun.Load(); last != 0 && now.Sub(time.Unix(0, last)) < s.interval {
		return SweepResult{}, false, nil
	}
	s.lastRun.Store(now.UnixNano())

	result, err := s.Sweep(ctx)
	return result, true, err
}

// Sweep 无条件执行一次清扫：按 AccessTime（相同时按 ModTime）升序删除，
// 直到总量不超过预算或条目耗尽。删除失败的条目被跳过且不重试。
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(entries)}
	var total int64
	for _, entry := range entries {
		total += entry.SizeBytes
	}
	result.TotalBytes = total
	defer func() {
		metrics.CacheBytes.Set(float64(total))
		metrics.Sweeps.Inc()
	}()

	if total <= s.maxBytes {
		result.RemainingBytes = total
		return result, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.AccessTime.Equal(b.AccessTime) {
			return a.AccessTime.Before(b.AccessTime)
		}
		return a.ModTime.Before(b.ModTime)
	})

	for _, entry := range entries {
		if total <= s.maxBytes {
			break
		}
		if err := s.store.Delete(ctx, entry.Name); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"action": "cache_sweep",
				"file":   entry.Name,
			}).Debug("cache_evict_skipped")
			continue
		}
		total -= entry.SizeBytes
		result.Deleted++
		result.FreedBytes += entry.SizeBytes
		metrics.EvictedFiles.Inc()
		metrics.EvictedBytes.Add(float64(entry.SizeBytes))
	}

	result.RemainingBytes = total
	return result, nil
}
