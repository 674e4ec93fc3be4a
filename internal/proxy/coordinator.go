package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/thaiguide/imagecache/internal/cache"
	"github.com/thaiguide/imagecache/internal/metrics"
)

// CoordinatorOptions 汇总 Coordinator 的依赖；Sweeper/Negative 为空时按默认参数创建。
type CoordinatorOptions struct {
	Store    cache.Store
	Fetcher  Fetcher
	Logger   *logrus.Logger
	Sweeper  *cache.Sweeper
	Negative *NegativeCache
}

// Coordinator 持有图片缓存在进程内的全部软状态：磁盘存储、淘汰器、负缓存、
// 回源器与合并中的回源请求。每个进程构造一次并注入 handler 与诊断路由。
type Coordinator struct {
	store    cache.Store
	sweeper  *cache.Sweeper
	negative *NegativeCache
	fetcher  Fetcher
	logger   *logrus.Logger
	inflight singleflight.Group
}

// NewCoordinator 校验依赖并补齐默认组件。
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sweeper := opts.Sweeper
	if sweeper == nil {
		sweeper = cache.NewSweeper(opts.Store, cache.SweeperOptions{Logger: logger})
	}
	negative := opts.Negative
	if negative == nil {
		negative = NewNegativeCache(NegativeTTL)
	}
	return &Coordinator{
		store:    opts.Store,
		sweeper:  sweeper,
		negative: negative,
		fetcher:  opts.Fetcher,
		logger:   logger,
	}, nil
}

// Store exposes the underlying cache store.
func (c *Coordinator) Store() cache.Store { return c.store }

// Sweeper exposes the eviction sweeper.
func (c *Coordinator) Sweeper() *cache.Sweeper { return c.sweeper }

// Negative exposes the negative-result cache.
func (c *Coordinator) Negative() *NegativeCache { return c.negative }

// Stats 汇总缓存目录的文件数与总字节数。
func (c *Coordinator) Stats(ctx context.Context) (cache.Stats, error) {
	stats, err := cache.CollectStats(ctx, c.store)
	if err != nil {
		return stats, err
	}
	metrics.CacheBytes.Set(float64(stats.TotalBytes))
	return stats, nil
}

// Clear 删除并重建缓存目录，返回清理后的统计。
func (c *Coordinator) Clear(ctx context.Context) (cache.Stats, error) {
	if err := c.store.Clear(ctx); err != nil {
		return cache.Stats{Path: c.store.Dir()}, fmt.Errorf("clear image cache: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"action": "cache_clear",
		"path":   c.store.Dir(),
	}).Info("image cache cleared")
	return c.Stats(ctx)
}

// Run 驱动后台维护：淘汰器消费写入信号，负缓存按 TTL 周期清理。ctx 结束时返回。
func (c *Coordinator) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.sweeper.Run(ctx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(c.negative.TTL())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				remaining := c.negative.Purge()
				c.logger.WithFields(logrus.Fields{
					"action":    "negative_purge",
					"remaining": remaining,
				}).Debug("negative cache purged")
			}
		}
	})
	return group.Wait()
}

// fetched 是一次完整回源的共享结果。
type fetched struct {
	body        []byte
	contentType string
	stored      bool
}

// fetchFull 回源完整图片并写入缓存。相同文件名的并发未命中合并为一次回源。
func (c *Coordinator) fetchFull(ctx context.Context, sourceURL, name string) (*fetched, bool, error) {
	value, err, shared := c.inflight.Do(name, func() (interface{}, error) {
		return c.fetchAndStore(context.WithoutCancel(ctx), sourceURL, name)
	})
	if err != nil {
		return nil, shared, err
	}
	return value.(*fetched), shared, nil
}

func (c *Coordinator) fetchAndStore(ctx context.Context, sourceURL, name string) (*fetched, error) {
	resp, err := c.fetcher.Fetch(ctx, sourceURL, "")
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		c.noteFailedStatus(sourceURL, resp.StatusCode)
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	metrics.UpstreamFetches.WithLabelValues("ok").Inc()

	result := &fetched{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode != http.StatusOK {
		return result, nil
	}

	if _, err := c.store.Write(ctx, name, body); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_write",
			"name":   name,
		}).Warn("cache_write_failed")
		return result, nil
	}
	result.stored = true
	c.sweeper.Notify()
	return result, nil
}

// fetchRange 透传 Range 请求，结果不写入缓存。
func (c *Coordinator) fetchRange(ctx context.Context, sourceURL, rangeHeader string) (*fetchedRange, error) {
	resp, err := c.fetcher.Fetch(ctx, sourceURL, rangeHeader)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		c.noteFailedStatus(sourceURL, resp.StatusCode)
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	metrics.UpstreamFetches.WithLabelValues("ok").Inc()

	return &fetchedRange{
		status:       resp.StatusCode,
		body:         body,
		contentType:  resp.Header.Get("Content-Type"),
		contentRange: resp.Header.Get("Content-Range"),
	}, nil
}

type fetchedRange struct {
	status       int
	body         []byte
	contentType  string
	contentRange string
}

func (c *Coordinator) noteFailedStatus(sourceURL string, status int) {
	if status == http.StatusNotFound {
		c.negative.Record(sourceURL)
		metrics.UpstreamFetches.WithLabelValues("not_found").Inc()
		return
	}
	metrics.UpstreamFetches.WithLabelValues("status").Inc()
}
