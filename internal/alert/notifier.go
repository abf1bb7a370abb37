package alert

import (
	"context"
	"sync"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
	"github.com/dolphin-iot/dolphin-core/internal/sms"
)

// Notifier fans alert messages out to every configured recipient.
//
// Notify enqueues onto a bounded channel and never blocks the caller: a
// full queue drops the alert with a log line rather than stalling the
// ingest path. A small worker pool drains the queue, and identical
// messages within the dedupe window are sent only once so a flapping
// device cannot flood the carriers.
type Notifier struct {
	sender  sms.Sender
	numbers []string
	logger  *logging.Logger

	queue  chan string
	window time.Duration

	mu       sync.Mutex
	closed   bool
	lastSent map[string]time.Time

	workers int
	wg      sync.WaitGroup

	// now is replaceable for tests.
	now func() time.Time
}

// NewNotifier creates a notifier from the alert configuration. Call Start
// before Notify and Stop during shutdown.
func NewNotifier(sender sms.Sender, cfg config.AlertConfig, logger *logging.Logger) *Notifier {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}

	return &Notifier{
		sender:   sender,
		numbers:  cfg.Numbers,
		logger:   logger.With("component", "alert"),
		queue:    make(chan string, queueSize),
		window:   time.Duration(cfg.DedupeWindow) * time.Second,
		lastSent: map[string]time.Time{},
		workers:  workers,
		now:      time.Now,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// the queue is closed by Stop.
func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.work(ctx)
	}
}

// Stop closes the queue and waits for in-flight sends to finish. Notify
// calls arriving after Stop are dropped. Safe to call more than once.
func (n *Notifier) Stop() {
	n.mu.Lock()
	alreadyClosed := n.closed
	n.closed = true
	n.mu.Unlock()

	if !alreadyClosed {
		close(n.queue)
	}
	n.wg.Wait()
}

// Notify enqueues one message for broadcast. Never blocks; duplicate
// messages inside the dedupe window, messages beyond the queue bound and
// messages arriving after Stop are dropped.
func (n *Notifier) Notify(message string) {
	if len(n.numbers) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// The monitor and refresher goroutines outlive Stop during shutdown;
	// their late alerts land here instead of on a closed channel.
	if n.closed {
		n.logger.Debug("alert dropped after shutdown", "message", message)
		return
	}

	now := n.now()
	if n.window > 0 {
		if last, ok := n.lastSent[message]; ok && now.Sub(last) < n.window {
			n.logger.Debug("alert suppressed by dedupe window", "message", message)
			return
		}
	}

	select {
	case n.queue <- message:
	default:
		n.logger.Warn("alert queue full, dropping", "message", message)
		return
	}

	// Only enqueued messages count for dedupe, so a drop does not
	// suppress its own retry.
	if n.window > 0 {
		n.lastSent[message] = now

		// Drop stale entries so the map does not grow with message
		// variety.
		for msg, at := range n.lastSent {
			if now.Sub(at) >= n.window {
				delete(n.lastSent, msg)
			}
		}
	}
}

// work drains the queue, broadcasting each message to every recipient.
// A failure for one recipient is logged and does not stop the others.
func (n *Notifier) work(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-n.queue:
			if !ok {
				return
			}
			for _, number := range n.numbers {
				if err := n.sender.Send(ctx, number, message); err != nil {
					n.logger.Error("sending alert failed",
						"to", number, "error", err)
				}
			}
		}
	}
}
