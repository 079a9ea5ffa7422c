// Package events provides the in-process event bus backing the
// domain.EventBus port. Handlers run synchronously on the emitter's
// goroutine; a handler panic is recovered and logged so one consumer cannot
// take down a request.
package events

import (
	"context"
	"log/slog"
	"sync"

	"inviteservice/internal/domain"
)

type bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]func(ctx context.Context, payload any)
}

// NewBus returns an empty in-process domain.EventBus.
func NewBus(logger *slog.Logger) domain.EventBus {
	return &bus{
		logger:   logger,
		handlers: make(map[string][]func(ctx context.Context, payload any)),
	}
}

func (b *bus) Subscribe(event string, handler func(ctx context.Context, payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *bus) Emit(ctx context.Context, event string, payload any) {
	b.mu.RLock()
	handlers := b.handlers[event]
	b.mu.RUnlock()
	for _, h := range handlers {
		b.dispatch(ctx, event, payload, h)
	}
}

func (b *bus) dispatch(ctx context.Context, event string, payload any, handler func(ctx context.Context, payload any)) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	handler(ctx, payload)
}
