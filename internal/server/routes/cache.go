package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/cache"
	"github.com/thaiguide/imagecache/internal/version"
)

// CacheAdmin 是诊断接口依赖的缓存操作，对应桌面端的 getImageCacheStats / clearImageCache。
type CacheAdmin interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Clear(ctx context.Context) (cache.Stats, error)
}

// Options 控制诊断路由的挂载内容。
type Options struct {
	Admin          CacheAdmin
	Logger         *logrus.Logger
	MetricsEnabled bool
}

// RegisterCacheRoutes 暴露 /-/cache/*、/-/metrics 与 /-/version 诊断接口。
func RegisterCacheRoutes(app *fiber.App, opts Options) {
	if app == nil || opts.Admin == nil {
		return
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/cache/stats", func(c fiber.Ctx) error {
		stats, err := opts.Admin.Stats(c.Context())
		if err != nil {
			logger.WithError(err).WithField("action", "cache_stats").Warn("cache_stats_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_stats_failed"})
		}
		return c.JSON(stats)
	})

	app.Post("/-/cache/clear", func(c fiber.Ctx) error {
		stats, err := opts.Admin.Clear(c.Context())
		if err != nil {
			logger.WithError(err).WithField("action", "cache_clear").Warn("cache_clear_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_clear_failed"})
		}
		return c.JSON(stats)
	})

	if opts.MetricsEnabled {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version": version.Version,
			"commit":  version.Commit,
			"full":    version.Full(),
		})
	})
}
