package proxy

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/cache"
	"github.com/thaiguide/imagecache/internal/logging"
	"github.com/thaiguide/imagecache/internal/metrics"
	"github.com/thaiguide/imagecache/internal/server"
)

// ImageOperation 是图片协议的操作名，对应 `<scheme>://image?url=`。
const ImageOperation = "image"

const defaultContentType = "application/octet-stream"

// Handler 负责 orchestrate “负缓存 → 磁盘命中/Range → 回源写缓存” 的全流程，
// 对外暴露 Fiber handler。任何失败都降级为占位图，只有已缓存资源上的非法
// Range 会返回 416。
type Handler struct {
	coord  *Coordinator
	logger *logrus.Logger
}

// NewHandler constructs the image handler on top of a coordinator.
func NewHandler(coord *Coordinator, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{coord: coord, logger: logger}
}

// requestState 携带单次请求的日志上下文。
type requestState struct {
	op        *server.Operation
	requestID string
	source    string
	started   time.Time
}

// Handle 实现 server.ProxyHandler。
func (h *Handler) Handle(c fiber.Ctx, op *server.Operation) error {
	// c.Query 返回的字符串引用 fasthttp 的复用缓冲区，source 会作为负缓存的键
	// 在请求结束后继续存在，必须复制。
	state := &requestState{
		op:        op,
		requestID: server.RequestID(c),
		source:    strings.Clone(c.Query("url")),
		started:   time.Now(),
	}

	if op == nil || op.Key != ImageOperation || !cache.IsHTTPURL(state.source) {
		return h.fallback(c, state, "invalid_request", nil)
	}

	if h.coord.negative.Suppressed(state.source) {
		metrics.NegativeSuppressed.Inc()
		return h.fallback(c, state, "negative_cached", nil)
	}

	ctx := requestContext(c)
	name := cache.FileName(state.source)
	rangeHeader := c.Get(fiber.HeaderRange)

	entry, err := h.coord.store.Stat(ctx, name)
	switch {
	case err == nil:
		served, serveErr := h.serveCached(c, ctx, state, entry, rangeHeader)
		if served || serveErr != nil {
			return serveErr
		}
	case errors.Is(err, cache.ErrNotFound):
		// miss
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "cache_stat",
			"name":       name,
			"request_id": state.requestID,
		}).Warn("cache_stat_failed")
	}

	if rangeHeader != "" {
		return h.relayRange(c, ctx, state, rangeHeader)
	}
	return h.fetchFull(c, ctx, state, name)
}

// serveCached 命中时回应 200/206/416。served=false 表示缓存文件读取失败，
// 调用方按未命中继续回源。
func (h *Handler) serveCached(
	c fiber.Ctx,
	ctx context.Context,
	state *requestState,
	entry cache.Entry,
	rangeHeader string,
) (bool, error) {
	store := h.coord.store
	go func(name string) {
		_ = store.Touch(context.Background(), name)
	}(entry.Name)

	contentType := contentTypeFor(entry.Name)
	window, outcome := ParseRange(rangeHeader, entry.SizeBytes)

	switch outcome {
	case RangeUnsatisfiable:
		c.Set(fiber.HeaderContentRange, UnsatisfiedContentRange(entry.SizeBytes))
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		c.Set(headerImageCache, "hit")
		status := fiber.StatusRequestedRangeNotSatisfiable
		h.logResult(state, metrics.OutcomeNotSatisfiable, status)
		return true, c.Status(status).Send(nil)
	case RangeValid:
		body, err := store.ReadRange(ctx, entry.Name, window.Start, window.Length())
		if err != nil {
			h.logCacheReadFailure(state, entry.Name, err)
			return false, nil
		}
		c.Set(fiber.HeaderContentRange, window.ContentRange(entry.SizeBytes))
		c.Set(headerImageCache, "hit")
		h.logResult(state, metrics.OutcomePartial, fiber.StatusPartialContent)
		return true, sendImage(c, fiber.StatusPartialContent, contentType, body)
	default:
		body, err := store.ReadFull(ctx, entry.Name)
		if err != nil {
			h.logCacheReadFailure(state, entry.Name, err)
			return false, nil
		}
		c.Set(headerImageCache, "hit")
		h.logResult(state, metrics.OutcomeHit, fiber.StatusOK)
		return true, sendImage(c, fiber.StatusOK, contentType, body)
	}
}

// fetchFull 未命中且无 Range：回源、写缓存、触发淘汰并返回完整内容。
func (h *Handler) fetchFull(c fiber.Ctx, ctx context.Context, state *requestState, name string) error {
	result, shared, err := h.coord.fetchFull(ctx, state.source, name)
	if err != nil {
		return h.fallback(c, state, upstreamReason(err), err)
	}

	contentType := result.contentType
	if contentType == "" {
		contentType = contentTypeFor(name)
	}
	c.Set(headerImageCache, "miss")
	if shared {
		c.Set("X-Image-Cache-Shared", "true")
	}
	h.logResult(state, metrics.OutcomeMiss, fiber.StatusOK)
	return sendImage(c, fiber.StatusOK, contentType, result.body)
}

// relayRange 未命中且带 Range：透传上游状态与 Content-Range，不写缓存。
func (h *Handler) relayRange(c fiber.Ctx, ctx context.Context, state *requestState, rangeHeader string) error {
	result, err := h.coord.fetchRange(ctx, state.source, rangeHeader)
	if err != nil {
		return h.fallback(c, state, upstreamReason(err), err)
	}

	contentType := result.contentType
	if contentType == "" {
		contentType = contentTypeFor(cache.FileName(state.source))
	}
	if result.contentRange != "" {
		c.Set(fiber.HeaderContentRange, result.contentRange)
	}
	c.Set(headerImageCache, "miss")
	h.logResult(state, metrics.OutcomeMiss, result.status)
	return sendImage(c, result.status, contentType, result.body)
}

func (h *Handler) fallback(c fiber.Ctx, state *requestState, reason string, err error) error {
	fields := h.requestFields(state, metrics.OutcomeFallback, fiber.StatusOK)
	fields["reason"] = reason
	entry := h.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("image_fallback")
	metrics.Requests.WithLabelValues(metrics.OutcomeFallback).Inc()
	return writeFallback(c)
}

func (h *Handler) logResult(state *requestState, outcome string, status int) {
	metrics.Requests.WithLabelValues(outcome).Inc()
	h.logger.WithFields(h.requestFields(state, outcome, status)).Info("image_request")
}

func (h *Handler) logCacheReadFailure(state *requestState, name string, err error) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"action":     "cache_read",
		"name":       name,
		"request_id": state.requestID,
	}).Warn("cache_read_failed")
}

func (h *Handler) requestFields(state *requestState, outcome string, status int) logrus.Fields {
	opKey := ""
	if state.op != nil {
		opKey = state.op.Key
	}
	fields := logging.RequestFields(state.requestID, opKey, state.source, outcome, status)
	fields["action"] = "image"
	fields["elapsed_ms"] = time.Since(state.started).Milliseconds()
	return fields
}

func sendImage(c fiber.Ctx, status int, contentType string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderCacheControl, LongLivedCacheControl)
	return c.Status(status).Send(body)
}

// contentTypeFor 根据缓存文件扩展名推断 MIME 类型。
func contentTypeFor(name string) string {
	ext := path.Ext(name)
	if ext == cache.DefaultExtension {
		return defaultContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}

func upstreamReason(err error) string {
	var statusErr *UpstreamStatusError
	switch {
	case errors.Is(err, ErrUpstreamNotFound):
		return "upstream_not_found"
	case errors.As(err, &statusErr):
		return "upstream_status"
	default:
		return "upstream_error"
	}
}

func requestContext(c fiber.Ctx) context.Context {
	var ctx context.Context = c.Context()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

var _ server.ProxyHandler = (*Handler)(nil)
