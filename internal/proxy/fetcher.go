package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUpstreamNotFound matches any UpstreamStatusError carrying a 404.
var ErrUpstreamNotFound = errors.New("upstream image not found")

// UpstreamStatusError reports a non-2xx upstream status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUpstreamNotFound) single out 404s.
func (e *UpstreamStatusError) Is(target error) bool {
	return target == ErrUpstreamNotFound && e.StatusCode == http.StatusNotFound
}

// Fetcher 抽象回源能力：给定 URL 与可选 Range 头，返回上游响应。
// 非 2xx 状态以响应形式返回，由调用方判定。
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, rangeHeader string) (*http.Response, error)
}

// HTTPFetcher 基于共享 http.Client 实现 Fetcher。
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher 构造回源器；client 为空时使用 http.DefaultClient。
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, userAgent: strings.TrimSpace(userAgent)}
}

// Fetch 发起 GET 请求，仅转发 Range 头。
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL, rangeHeader string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")
	return f.client.Do(req)
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
