package server

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/config"
	"github.com/thaiguide/imagecache/internal/logging"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回带重试与退避的 http.Client，用于所有图片回源请求。
// 重试耗尽后保留最后一次响应（而非错误），调用方据此区分 404 与其他状态。
func NewUpstreamClient(cfg *config.Config, logger *logrus.Logger) *http.Client {
	timeout := 30 * time.Second
	retries := 2
	waitMin := 500 * time.Millisecond
	waitMax := 5 * time.Second
	if cfg != nil {
		if cfg.UpstreamTimeout.DurationValue() > 0 {
			timeout = cfg.UpstreamTimeout.DurationValue()
		}
		if cfg.MaxRetries >= 0 {
			retries = cfg.MaxRetries
		}
		if cfg.InitialBackoff.DurationValue() > 0 {
			waitMin = cfg.InitialBackoff.DurationValue()
		}
		if cfg.MaxBackoff.DurationValue() > 0 {
			waitMax = cfg.MaxBackoff.DurationValue()
		}
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
	client.RetryMax = retries
	client.RetryWaitMin = waitMin
	client.RetryWaitMax = waitMax
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = logging.NewRetryLogger(logger)

	return client.StandardClient()
}
