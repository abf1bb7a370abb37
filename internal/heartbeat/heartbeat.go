package heartbeat

import (
	"context"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/mqtt"
)

const (
	// startDelay is the pause between connecting and the first publish,
	// giving the broker time to finish session setup.
	startDelay = 125 * time.Millisecond

	// reconnectPoll is how often a publisher re-checks the connection
	// while the broker is away.
	reconnectPoll = 125 * time.Millisecond
)

// Publisher is the broker surface the heartbeats need.
type Publisher interface {
	PublishString(topic, payload string, qos byte, retained bool) error
	IsConnected() bool
}

// Heartbeat keeps the fleet's shared clock and liveness topics fed: the
// current KST wall clock on "timestamp" and a ping on "beacon", each on a
// fixed period while the broker connection is up.
type Heartbeat struct {
	publisher Publisher
	period    time.Duration
	qos       byte
	logger    *logging.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a heartbeat publishing every period.
func New(publisher Publisher, period time.Duration, qos byte, logger *logging.Logger) *Heartbeat {
	return &Heartbeat{
		publisher: publisher,
		period:    period,
		qos:       qos,
		logger:    logger.With("component", "heartbeat"),
		now:       time.Now,
	}
}

// Run starts both publishers and blocks until ctx is cancelled. Intended
// to be launched from the broker's on-connect callback.
func (h *Heartbeat) Run(ctx context.Context) {
	go h.loop(ctx, h.publishTimestamp)
	h.loop(ctx, h.publishBeacon)
}

// loop waits the start delay, then invokes publish once per period while
// connected; while disconnected it polls the connection instead of
// publishing into the void.
func (h *Heartbeat) loop(ctx context.Context, publish func() error) {
	if !sleepCtx(ctx, startDelay) {
		return
	}

	for {
		var wait time.Duration
		if h.publisher.IsConnected() {
			if err := publish(); err != nil {
				h.logger.Warn("heartbeat publish failed", "error", err)
			}
			wait = h.period
		} else {
			wait = reconnectPoll
		}

		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// publishTimestamp sends the current KST wall clock as MMDDHHMM.
func (h *Heartbeat) publishTimestamp() error {
	stamp := h.now().In(equipment.KST).Format("01021504")
	return h.publisher.PublishString(mqtt.TopicTimestamp, stamp, h.qos, false)
}

// publishBeacon sends the liveness ping.
func (h *Heartbeat) publishBeacon() error {
	return h.publisher.PublishString(mqtt.TopicBeacon, "ping", h.qos, false)
}

// sleepCtx sleeps for d, returning false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
