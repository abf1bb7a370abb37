package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/alert"
	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// silenceFactor scales the expected telemetry interval into the fault
// threshold: a device is silent once no report arrived for 1.5 intervals.
const silenceFactor = 1.5

// Notifier queues one alert message for broadcast.
type Notifier interface {
	Notify(message string)
}

// Monitor sweeps active devices for cellular silence.
//
// The stored receive_date is naive KST; the sweep converts it to UTC
// before comparing against the wall clock. Devices with no history are
// skipped entirely.
type Monitor struct {
	repo     equipment.Repository
	notifier Notifier
	interval time.Duration
	logger   *logging.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a liveness monitor sweeping every interval.
func New(repo equipment.Repository, notifier Notifier, interval time.Duration, logger *logging.Logger) *Monitor {
	return &Monitor{
		repo:     repo,
		notifier: notifier,
		interval: interval,
		logger:   logger.With("component", "monitor"),
		now:      time.Now,
	}
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if err := m.Sweep(ctx); err != nil {
		m.logger.Error("liveness sweep failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("liveness sweep failed", "error", err)
			}
		}
	}
}

// Sweep checks every active device once and drives FAULT transitions.
func (m *Monitor) Sweep(ctx context.Context) error {
	devices, err := m.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, dev := range devices {
		if err := m.check(ctx, dev); err != nil {
			m.logger.Error("liveness check failed",
				"device", dev.CanonicalID(), "error", err)
		}
	}
	return nil
}

// check compares one device's newest report age against its threshold.
func (m *Monitor) check(ctx context.Context, dev equipment.Equipment) error {
	latest, err := m.repo.LatestStatus(ctx, dev.Type, dev.ID)
	if err != nil {
		if errors.Is(err, equipment.ErrNoStatus) {
			return nil
		}
		return err
	}

	// receive_date is naive KST; pin the zone then compare in UTC.
	received := time.Date(
		latest.ReceiveDate.Year(), latest.ReceiveDate.Month(), latest.ReceiveDate.Day(),
		latest.ReceiveDate.Hour(), latest.ReceiveDate.Minute(), latest.ReceiveDate.Second(),
		latest.ReceiveDate.Nanosecond(), equipment.KST,
	).UTC()

	silence := m.now().UTC().Sub(received).Seconds()
	threshold := silenceFactor * float64(dev.Interval)

	switch {
	case silence > threshold && dev.State != equipment.StateFault:
		if err := m.repo.UpdateState(ctx, dev.Type, dev.ID, equipment.StateFault); err != nil {
			return err
		}
		m.logger.Warn("device silent, marking FAULT",
			"device", dev.CanonicalID(), "silence_seconds", int(silence))
		m.notifier.Notify(alert.LTEFault(dev.Place, dev.Type, dev.ID))

	case silence <= threshold && dev.State == equipment.StateFault:
		if err := m.repo.UpdateState(ctx, dev.Type, dev.ID, equipment.StateNormal); err != nil {
			return err
		}
		m.logger.Info("device recovered, marking NORMAL", "device", dev.CanonicalID())
		m.notifier.Notify(alert.LTEResumed(dev.Place, dev.Type, dev.ID))
	}
	return nil
}
