package mqtt

import (
	"strings"
	"sync"
)

// Router maps incoming topics to registered handlers by subscription
// pattern. Each registration is independent; a topic matching several
// patterns invokes every matching handler.
//
// Dispatch itself never suspends: handlers that need to await I/O must
// offload to their own worker (see internal/telemetry's pipeline).
//
// Thread Safety:
//   - Handle and Dispatch are safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	routes []route
	logger Logger
}

// route pairs a subscription pattern with its handler.
type route struct {
	pattern string
	handler MessageHandler
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// SetLogger sets a logger for handler errors and recovered panics.
func (r *Router) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Handle registers a handler for topics matching pattern.
func (r *Router) Handle(pattern string, handler MessageHandler) {
	if pattern == "" || handler == nil {
		return
	}
	r.mu.Lock()
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
	r.mu.Unlock()
}

// Patterns returns the registered subscription patterns in registration
// order. Used to mirror the route table onto broker subscriptions.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, len(r.routes))
	for i, rt := range r.routes {
		patterns[i] = rt.pattern
	}
	return patterns
}

// Dispatch invokes every handler whose pattern matches topic.
//
// Handler errors and panics are logged and never halt dispatch of the
// remaining handlers. Dispatch satisfies MessageHandler so it can be bound
// directly to a broker subscription.
func (r *Router) Dispatch(topic string, payload []byte) error {
	r.mu.RLock()
	routes := make([]route, len(r.routes))
	copy(routes, r.routes)
	logger := r.logger
	r.mu.RUnlock()

	for _, rt := range routes {
		if !Match(rt.pattern, topic) {
			continue
		}
		r.invoke(rt, topic, payload, logger)
	}
	return nil
}

// invoke runs a single handler with panic recovery.
func (r *Router) invoke(rt route, topic string, payload []byte, logger Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			if logger != nil {
				logger.Error("router handler panic recovered",
					"pattern", rt.pattern,
					"topic", topic,
					"panic", rec,
				)
			}
		}
	}()

	if err := rt.handler(topic, payload); err != nil {
		if logger != nil {
			logger.Warn("router handler returned error",
				"pattern", rt.pattern,
				"topic", topic,
				"error", err,
			)
		}
	}
}

// Match reports whether topic matches the subscription pattern.
//
// Pattern grammar (slash-separated segments):
//   - "+" matches exactly one segment
//   - "#" as the final segment matches one or more remaining segments
//   - any other segment matches only itself
//
// A pattern without a trailing "#" matches only topics with the same
// segment count.
func Match(pattern, topic string) bool {
	patternSegs := strings.Split(pattern, "/")
	topicSegs := strings.Split(topic, "/")

	wildcard := patternSegs[len(patternSegs)-1] == "#"
	if !wildcard && len(patternSegs) != len(topicSegs) {
		return false
	}
	if wildcard && len(topicSegs) < len(patternSegs) {
		return false
	}

	for i, seg := range patternSegs {
		switch seg {
		case "#":
			return true
		case "+":
			// matches any single segment
		default:
			if seg != topicSegs[i] {
				return false
			}
		}
	}
	return true
}
