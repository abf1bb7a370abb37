package telemetry

import (
	"context"
	"sync"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// Pool is the bounded worker pool message handlers run on. Router
// dispatch enqueues and returns immediately; when the queue is full the
// message is dropped with a log line, which keeps a broker burst from
// growing goroutines without bound.
type Pool struct {
	queue    chan func()
	workers  int
	logger   *logging.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a pool with the given worker count and queue bound.
func NewPool(workers, queueSize int, logger *logging.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		queue:   make(chan func(), queueSize),
		workers: workers,
		logger:  logger.With("component", "pipeline"),
	}
}

// Start launches the workers. They exit when ctx is cancelled or the
// queue is closed by Stop.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.queue:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Safe to
// call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.queue) })
	p.wg.Wait()
}

// Submit enqueues one job without blocking. Returns false when the queue
// is full and the job was dropped.
func (p *Pool) Submit(job func()) bool {
	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn("pipeline queue full, dropping message")
		return false
	}
}
