package proxy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/thaiguide/imagecache/internal/metrics"
	"github.com/thaiguide/imagecache/internal/server"
)

// Forwarder 根据 Operation.Key 选择已注册的 handler；未知操作与 handler panic
// 一律降级为占位图，协议层不向调用方暴露错误。
type Forwarder struct {
	handlers sync.Map
	logger   *logrus.Logger
}

// NewForwarder 创建空的 Forwarder，handler 通过 Register 注册。
func NewForwarder(logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Forwarder{logger: logger}
}

// Handle 实现 server.ProxyHandler，根据 op.Key 选择 handler。
func (f *Forwarder) Handle(c fiber.Ctx, op *server.Operation) error {
	requestID := server.RequestID(c)
	handler := f.lookup(op)
	if handler == nil {
		return f.respondUnknownOperation(c, op, requestID)
	}
	return f.invokeHandler(c, op, handler, requestID)
}

func (f *Forwarder) respondUnknownOperation(c fiber.Ctx, op *server.Operation, requestID string) error {
	f.logOperation(op, "operation_unknown", nil, requestID, logrus.InfoLevel)
	setRequestIDHeader(c, requestID)
	metrics.Requests.WithLabelValues(metrics.OutcomeFallback).Inc()
	return writeFallback(c)
}

func (f *Forwarder) invokeHandler(c fiber.Ctx, op *server.Operation, handler OperationHandler, requestID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f.respondHandlerPanic(c, op, r, requestID)
		}
	}()
	return handler.Handle(c, op)
}

func (f *Forwarder) respondHandlerPanic(c fiber.Ctx, op *server.Operation, recovered interface{}, requestID string) error {
	f.logOperation(op, "operation_handler_panic", fmt.Errorf("panic: %v", recovered), requestID, logrus.ErrorLevel)
	setRequestIDHeader(c, requestID)
	metrics.Requests.WithLabelValues(metrics.OutcomeFallback).Inc()
	return writeFallback(c)
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (f *Forwarder) logOperation(op *server.Operation, code string, err error, requestID string, level logrus.Level) {
	fields := operationFields(op, requestID)
	fields["action"] = "dispatch"
	fields["error"] = code
	entry := f.logger.WithFields(fields)
	if err != nil {
		entry.Log(level, err.Error())
		return
	}
	entry.Log(level, "operation handler unavailable")
}

func (f *Forwarder) lookup(op *server.Operation) OperationHandler {
	if op == nil {
		return nil
	}
	normalized := normalizeOperationKey(op.Key)
	if normalized == "" {
		return nil
	}
	if value, ok := f.handlers.Load(normalized); ok {
		if handler, ok := value.(OperationHandler); ok {
			return handler
		}
	}
	return nil
}

func normalizeOperationKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func operationFields(op *server.Operation, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"operation": "",
		"host":      "",
	}
	if op != nil {
		fields["operation"] = op.Key
		fields["host"] = op.Host
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
