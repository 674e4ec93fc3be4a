package proxy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thaiguide/imagecache/internal/server"
)

// OperationHandler is the runtime contract each protocol operation must provide.
// It aligns with server.ProxyHandler so handlers can be mounted directly in tests.
type OperationHandler = server.ProxyHandler

// OperationRegistration captures an operation key and its handler for safe registration.
type OperationRegistration struct {
	Key     string
	Handler OperationHandler
}

// ErrOperationExists indicates a handler has already been registered for the key.
var ErrOperationExists = errors.New("operation handler already registered")

// Validate ensures both key and handler are present before registration.
func (r OperationRegistration) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return errors.New("operation key required")
	}
	if r.Handler == nil {
		return errors.New("operation handler required")
	}
	return nil
}

// Register adds a validated operation handler to the forwarder.
func (f *Forwarder) Register(reg OperationRegistration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	normalized := normalizeOperationKey(reg.Key)
	if _, loaded := f.handlers.LoadOrStore(normalized, reg.Handler); loaded {
		return fmt.Errorf("%w: %s", ErrOperationExists, normalized)
	}
	return nil
}

// MustRegister panics when registration fails; suitable for process wiring.
func (f *Forwarder) MustRegister(reg OperationRegistration) {
	if err := f.Register(reg); err != nil {
		panic(err)
	}
}

// Keys returns the registered operation keys.
func (f *Forwarder) Keys() []string {
	var keys []string
	f.handlers.Range(func(key, _ interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	return keys
}
