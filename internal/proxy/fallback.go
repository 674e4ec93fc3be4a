package proxy

import "github.com/gofiber/fiber/v3"

const (
	// LongLivedCacheControl 用于真实图片字节：内容按 URL 寻址，不会变化。
	LongLivedCacheControl = "public, max-age=31536000, immutable"
	// FallbackCacheControl 用于占位图：不能被当作最终图片长期缓存。
	FallbackCacheControl = "public, max-age=86400"
	// FallbackContentType 是占位图的 MIME 类型。
	FallbackContentType = "image/svg+xml"

	headerImageCache = "X-Image-Cache"
)

// placeholderSVG 是固定的灰底相框图标。
var placeholderSVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="320" height="200" viewBox="0 0 320 200">` +
	`<rect width="320" height="200" fill="#e5e7eb"/>` +
	`<g fill="none" stroke="#9ca3af" stroke-width="6" stroke-linejoin="round">` +
	`<rect x="110" y="60" width="100" height="80" rx="8"/>` +
	`<path d="M118 128l28-30 22 20 14-12 20 22"/>` +
	`</g>` +
	`<circle cx="186" cy="84" r="8" fill="#9ca3af"/>` +
	`</svg>`)

// PlaceholderSVG returns a copy of the placeholder body.
func PlaceholderSVG() []byte {
	return append([]byte(nil), placeholderSVG...)
}

// writeFallback 输出占位图。它在传输层报告成功，内容为 SVG。
// 之前阶段可能已写入的 Range 相关头会被清除。
func writeFallback(c fiber.Ctx) error {
	c.Response().Header.Del(fiber.HeaderContentRange)
	c.Response().Header.Del(fiber.HeaderAcceptRanges)
	c.Set(fiber.HeaderContentType, FallbackContentType)
	c.Set(fiber.HeaderCacheControl, FallbackCacheControl)
	c.Set(headerImageCache, "fallback")
	return c.Status(fiber.StatusOK).Send(placeholderSVG)
}
