package format

import (
	"sync"

	"go.uber.org/zap"
)

// ReadyMessage is logged by ReadyHook.
const ReadyMessage = "archive-ui utilities loaded"

// Lifecycle runs registered hooks once the server has finished building its
// pages and routes.
type Lifecycle struct {
	mu    sync.Mutex
	hooks []func()
	ready bool
}

// OnReady registers fn. Hooks registered after Ready run immediately.
func (l *Lifecycle) OnReady(fn func()) {
	l.mu.Lock()
	if !l.ready {
		l.hooks = append(l.hooks, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}

// Ready runs the pending hooks in registration order. Only the first call
// has any effect.
func (l *Lifecycle) Ready() {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return
	}
	l.ready = true
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// IsReady reports whether Ready has been called.
func (l *Lifecycle) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// ReadyHook returns the default hook, which logs ReadyMessage.
func ReadyHook(log *zap.Logger) func() {
	return func() {
		log.Info(ReadyMessage)
	}
}
