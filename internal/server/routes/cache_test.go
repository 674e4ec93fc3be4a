package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/cache"
	"github.com/thaiguide/imagecache/internal/metrics"
)

func TestCacheStatsRoute(t *testing.T) {
	admin := &fakeAdmin{stats: cache.Stats{FileCount: 3, TotalBytes: 4096, Path: "/data/image-cache"}}
	app := newRoutesApp(admin, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["fileCount"] != float64(3) || payload["totalBytes"] != float64(4096) || payload["path"] != "/data/image-cache" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestCacheClearRoute(t *testing.T) {
	admin := &fakeAdmin{stats: cache.Stats{FileCount: 3, TotalBytes: 4096, Path: "/data/image-cache"}}
	app := newRoutesApp(admin, false)

	resp, err := app.Test(httptest.NewRequest("POST", "/-/cache/clear", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var stats cache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !admin.cleared || stats.FileCount != 0 || stats.TotalBytes != 0 || stats.Path != "/data/image-cache" {
		t.Fatalf("unexpected clear result: %+v cleared=%v", stats, admin.cleared)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/cache/clear", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Fatalf("clear must require POST, got %d", resp.StatusCode)
	}
}

func TestCacheRoutesReportErrors(t *testing.T) {
	admin := &fakeAdmin{err: errors.New("disk gone")}
	app := newRoutesApp(admin, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusInternalServerError || !strings.Contains(string(body), "cache_stats_failed") {
		t.Fatalf("expected cache_stats_failed, got %d %s", resp.StatusCode, body)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics.Sweeps.Inc()
	app := newRoutesApp(&fakeAdmin{}, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), "imagecache_sweeps_total") {
		t.Fatalf("expected prometheus exposition, got %d", resp.StatusCode)
	}

	disabled := newRoutesApp(&fakeAdmin{}, false)
	resp, err = disabled.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("metrics should be absent when disabled, got %d", resp.StatusCode)
	}
}

func TestVersionRoute(t *testing.T) {
	app := newRoutesApp(&fakeAdmin{}, false)
	resp, err := app.Test(httptest.NewRequest("GET", "/-/version", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "imagecache") {
		t.Fatalf("unexpected version payload: %s", body)
	}
}

func newRoutesApp(admin CacheAdmin, metricsEnabled bool) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := fiber.New()
	RegisterCacheRoutes(app, Options{Admin: admin, Logger: logger, MetricsEnabled: metricsEnabled})
	return app
}

type fakeAdmin struct {
	stats   cache.Stats
	err     error
	cleared bool
}

func (f *fakeAdmin) Stats(context.Context) (cache.Stats, error) {
	return f.stats, f.err
}

func (f *fakeAdmin) Clear(context.Context) (cache.Stats, error) {
	if f.err != nil {
		return cache.Stats{}, f.err
	}
	f.cleared = true
	f.stats = cache.Stats{Path: f.stats.Path}
	return f.stats, nil
}
