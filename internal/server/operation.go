package server

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// Operation 描述一次协议请求解析出的操作，例如 image。
// Key 为空表示无法识别，由下游 handler 决定如何降级。
type Operation struct {
	// Key 是规范化后的操作名（小写、去除首尾空白）。
	Key string
	// Host/Port 来自请求 Host 头，便于日志输出。
	Host string
	Port int
	// ViaPath 表示操作名来自路径首段而不是 Host。
	ViaPath bool
}

// OperationResolver 负责把自定义 scheme 映射到 HTTP 请求后的 Host/Path 还原为操作名。
// 外壳既可能把 `<scheme>://image?url=` 原样转成 Host=image，也可能改写为
// 回环地址上的 `/image?url=`，两种形态都需要识别。
type OperationResolver struct {
	operations map[string]struct{}
	localHosts map[string]struct{}
}

// NewOperationResolver 根据已知操作与监听地址构建解析器。
func NewOperationResolver(listenHost string, operations ...string) (*OperationResolver, error) {
	if len(operations) == 0 {
		return nil, errors.New("at least one operation is required")
	}

	resolver := &OperationResolver{
		operations: make(map[string]struct{}, len(operations)),
		localHosts: map[string]struct{}{
			"localhost": {},
			"127.0.0.1": {},
			"::1":       {},
		},
	}
	for _, op := range operations {
		key := normalizeKey(op)
		if key == "" {
			return nil, errors.New("operation key required")
		}
		resolver.operations[key] = struct{}{}
	}
	if host, _ := normalizeHost(listenHost); host != "" {
		resolver.localHosts[host] = struct{}{}
	}
	return resolver, nil
}

// Resolve 解析 Host 与 Path，返回的 Operation 永不为 nil。
func (r *OperationResolver) Resolve(rawHost, path string) *Operation {
	host, port := normalizeHost(rawHost)
	op := &Operation{Host: host, Port: port}
	if r == nil {
		return op
	}

	if _, ok := r.operations[host]; ok {
		op.Key = host
		return op
	}

	if _, ok := r.localHosts[host]; ok || host == "" {
		segment := firstSegment(path)
		if _, known := r.operations[segment]; known {
			op.Key = segment
			op.ViaPath = true
		}
	}
	return op
}

// Operations 返回已注册的操作名。
func (r *OperationResolver) Operations() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.operations))
	for key := range r.operations {
		keys = append(keys, key)
	}
	return keys
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		path = path[:idx]
	}
	return normalizeKey(path)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[:idx], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
