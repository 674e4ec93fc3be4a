package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler describes the component that answers protocol requests once
// the operation has been resolved. It allows injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx, *Operation) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx, *Operation) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx, op *Operation) error {
	return f(c, op)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger   *logrus.Logger
	Resolver *OperationResolver
	Proxy    ProxyHandler
}

const (
	contextKeyOperation = "_imagecache_operation"
	contextKeyRequestID = "_imagecache_request_id"
)

// NewApp builds a Fiber application with Host/path operation resolution and
// request ID middleware. Diagnostics routes under /-/ are registered by the
// caller after NewApp returns.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("operation resolver is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		op, ok := OperationFromContext(c)
		if !ok {
			op = &Operation{}
		}
		return opts.Proxy.Handle(c, op)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并基于 Host/Path 解析操作名。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		path := string(c.Request().URI().Path())
		if isDiagnosticsPath(path) {
			return c.Next()
		}

		rawHost := strings.TrimSpace(getHostHeader(c))
		op := opts.Resolver.Resolve(rawHost, path)
		if op.Key == "" {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "operation_lookup",
				"host":       rawHost,
				"path":       path,
				"request_id": reqID,
			}).Debug("operation unresolved")
		}
		c.Locals(contextKeyOperation, op)
		return c.Next()
	}
}

func getHostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

// OperationFromContext returns the operation stored by the router middleware.
func OperationFromContext(c fiber.Ctx) (*Operation, bool) {
	if value := c.Locals(contextKeyOperation); value != nil {
		if op, ok := value.(*Operation); ok {
			return op, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
